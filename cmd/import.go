package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmcli"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

var (
	importParts    string
	importSeparate bool
	importFolder   string

	importFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "parts, p",
			Usage:       "comma separated list of part numbers this machine should download (all parts if omitted)",
			Destination: &importParts,
		},
		cli.BoolFlag{
			Name:        "separate, s",
			Usage:       "admit each part as its own task instead of one combined task",
			Destination: &importSeparate,
		},
		cli.StringFlag{
			Name:        "folder, F",
			Usage:       "organize the imported download under a named folder",
			Destination: &importFolder,
		},
	}
)

func parseParts(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var parts []int
	for _, s := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid part number %q", s)
		}
		parts = append(parts, n)
	}
	return parts, nil
}

func importManifest(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return cmdCommon.PrintErrWithCmdHelp(
			ctx,
			errors.New("no manifest file provided"),
		)
	} else if path == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "import", "read_manifest", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	var m dlmlib.TaskManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "import", "parse_manifest", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	if err := m.Validate(); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "import", "validate_manifest", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	parts, err := parseParts(importParts)
	if err != nil {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "import", "new_client", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	defer client.Close()
	client.CheckVersionMismatch(currentBuildArgs.Version)
	resp, err := client.Import(&m, parts, importSeparate, importFolder)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "import", "import", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	fmt.Println("Imported tasks:")
	for _, id := range resp.TaskIds {
		fmt.Println("  ", id)
	}
	fmt.Println("\nUse 'dlm attach <task-id>' to follow a download.")
	return nil
}
