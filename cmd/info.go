package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

var infoFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "user-agent, u",
		Usage:       "set a custom user agent for the probe",
		Destination: &userAgent,
	},
}

func info(ctx *cli.Context) error {
	url := ctx.Args().First()
	if url == "" {
		return cmdCommon.PrintErrWithCmdHelp(
			ctx,
			errors.New("no url provided"),
		)
	}
	fmt.Printf("%s: fetching details, please wait...\n", ctx.App.HelpName)

	var session *dlmlib.Session
	if userAgent != "" {
		session = dlmlib.NewSession("", userAgent, nil, nil)
	}

	client := dlmlib.NewClient(nil)
	cctx, cancel := context.WithTimeout(context.Background(), dlmlib.DiscoveryTimeout)
	defer cancel()

	size, viaStream, err := client.GetContentLength(cctx, url, session)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "info", "probe", err)
		return nil
	}
	resumable := false
	if !viaStream {
		resumable, _ = client.SupportsRanges(cctx, url, session)
	}
	name, _ := client.ProbeFileName(cctx, url, session)
	if name == "" {
		name = "not-defined"
	}
	fmt.Printf(`
File Info
Name`+"\t\t"+`: %s
Size`+"\t\t"+`: %s
Resumable`+"\t"+`: %v
Segments`+"\t"+`: %d
`, name, dlmlib.ContentLength(size).String(), resumable,
		dlmlib.SegmentCount(size, resumable))
	return nil
}
