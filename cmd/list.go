package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmcli"
)

var (
	showCompleted bool
	showPending   bool
	showAll       bool
	listFolder    string

	lsFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "show-completed, c",
			Usage:       "use this flag to list completed downloads (default: false)",
			Destination: &showCompleted,
		},
		cli.BoolFlag{
			Name:        "show-pending, p",
			Usage:       "use this flag to include never-started downloads (default: false)",
			Destination: &showPending,
		},
		cli.BoolFlag{
			Name:        "show-all, a",
			Usage:       "use this flag to list all downloads (default: false)",
			Destination: &showAll,
		},
		cli.StringFlag{
			Name:        "folder, F",
			Usage:       "only list downloads in the named folder",
			Destination: &listFolder,
		},
	}
)

func list(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "list", "new_client", err)
		return nil
	}
	defer client.Close()
	l, err := client.List(&dlmcli.ListOpts{
		ShowCompleted: showCompleted || showAll,
		ShowPending:   showPending || showAll,
		Folder:        listFolder,
	})
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "list", "get_list", err)
		return nil
	}
	if len(l.Tasks) == 0 {
		fmt.Println("dlm: no downloads found")
		return nil
	}
	txt := "Here are your downloads:"
	txt += "\n\n-----------------------------------------------------------------"
	txt += "\n|Num|\t         Name         | Task Id  |    State    | Progress |"
	txt += "\n|---|-------------------------|----------|-------------|----------|"
	for i, t := range l.Tasks {
		name := t.FileName
		n := len(name)
		switch {
		case n > 23:
			name = name[:20] + "..."
		case n < 23:
			name = cmdCommon.Beaut(name, 23)
		}
		perc := fmt.Sprintf(`%d%%`, t.Progress)
		txt += fmt.Sprintf("\n| %d | %s | %s | %s | %s |",
			i+1, name, t.TaskId,
			cmdCommon.Beaut(t.State, 11),
			cmdCommon.Beaut(perc, 8),
		)
	}
	txt += "\n-----------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}
