package cmd

import (
	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmcli"
)

var (
	renewUrl string

	renewFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "url",
			Usage:       "replace the download url as well (same resource, fresh signed link)",
			Destination: &renewUrl,
		},
		cli.StringFlag{
			Name:        "user-agent, u",
			Usage:       "set a new user agent for the renewed session",
			Destination: &userAgent,
		},
		cli.StringFlag{
			Name:        "referer, r",
			Usage:       "set a new referer header for the renewed session",
			Destination: &referer,
		},
		cli.StringSliceFlag{
			Name:  "header, H",
			Usage: "add a request header as \"Name: value\" (repeatable)",
		},
		cli.StringSliceFlag{
			Name:  "cookie, c",
			Usage: "add a request cookie as \"name=value\" (repeatable)",
		},
	}
)

// renew replaces an expired session on a paused task and resumes it
// from its persisted offsets.
func renew(ctx *cli.Context) error {
	id, err := argTaskId(ctx)
	if err != nil || id == "" {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "renew", "new_client", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	client.CheckVersionMismatch(currentBuildArgs.Version)
	err = client.Recapture(&common.RecaptureParams{
		TaskId:    id,
		Url:       renewUrl,
		Headers:   parseHeaders(ctx.StringSlice("header")),
		Cookies:   parseCookies(ctx.StringSlice("cookie")),
		Referer:   referer,
		UserAgent: userAgent,
	})
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "renew", "recapture", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	return followTask(ctx, client, id)
}
