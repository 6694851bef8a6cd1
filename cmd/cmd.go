package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

// currentBuildArgs is captured by Execute so command actions can report
// the CLI build to the daemon.
var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "dlm",
		HelpName:              "dlm",
		Usage:                 "A persistent, resumable download manager.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "dlm <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          cmdCommon.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:   "daemon",
				Usage:  "run the download daemon in the foreground",
				Action: daemon,
				Flags:  daemonFlags,
			},
			{
				Name:               "info",
				Aliases:            []string{"i"},
				Usage:              "shows info about a file",
				Action:             info,
				OnUsageError:       cmdCommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        InfoDescription,
				Flags:              infoFlags,
			},
			{
				Name:                   "download",
				Aliases:                []string{"d"},
				Usage:                  "download a file",
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				OnUsageError:           cmdCommon.UsageErrorCallback,
				Action:                 download,
				Flags:                  dlFlags,
				UseShortOptionHandling: true,
				Description:            DownloadDescription,
			},
			{
				Name:                   "list",
				Aliases:                []string{"l"},
				Usage:                  "display downloads history",
				Action:                 list,
				OnUsageError:           cmdCommon.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ListDescription,
				UseShortOptionHandling: true,
				Flags:                  lsFlags,
			},
			{
				Name:               "pause",
				Usage:              "pause a running download",
				Action:             pause,
				OnUsageError:       cmdCommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
			},
			{
				Name:                   "resume",
				Aliases:                []string{"r"},
				Usage:                  "resume an incomplete download",
				Description:            ResumeDescription,
				OnUsageError:           cmdCommon.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 resume,
				UseShortOptionHandling: true,
				Flags:                  resumeFlags,
			},
			{
				Name:               "retry",
				Usage:              "restart a failed or cancelled download from scratch",
				Action:             retry,
				OnUsageError:       cmdCommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
			},
			{
				Name:                   "remove",
				Usage:                  "remove a download from the daemon",
				Action:                 remove,
				OnUsageError:           cmdCommon.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				UseShortOptionHandling: true,
				Flags:                  rmFlags,
			},
			{
				Name:                   "import",
				Usage:                  "admit downloads from a shared task manifest",
				Description:            ImportDescription,
				Action:                 importManifest,
				OnUsageError:           cmdCommon.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				UseShortOptionHandling: true,
				Flags:                  importFlags,
			},
			{
				Name:                   "renew",
				Usage:                  "replace an expired session on a paused download",
				Description:            RenewDescription,
				Action:                 renew,
				OnUsageError:           cmdCommon.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				UseShortOptionHandling: true,
				Flags:                  renewFlags,
			},
			{
				Name:               "attach",
				Aliases:            []string{"a"},
				Usage:              "attach to a running download's progress",
				Action:             attach,
				OnUsageError:       cmdCommon.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
			},
			{
				Name:   "stop-daemon",
				Usage:  "ask the running daemon to shut down",
				Action: stopDaemon,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  cmdCommon.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of dlm",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             cmdCommon.GetVersion,
			},
		},
		Action:                 download,
		Flags:                  dlFlags,
		UseShortOptionHandling: true,
		HideHelp:               true,
		HideVersion:            true,
	}
	cmdCommon.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
