package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmcli"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

var (
	dlPath    string
	fileName  string
	folder    string
	maxConns  int
	userAgent string
	referer   string
	ephemeral bool

	dlFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "file-name, o",
			Usage:       "explicitly set the name of file (determined automatically if not specified)",
			Destination: &fileName,
		},
		cli.StringFlag{
			Name:        "download-path, l",
			Usage:       "set the path where downloaded file should be saved",
			Destination: &dlPath,
		},
		cli.StringFlag{
			Name:        "folder, F",
			Usage:       "organize this download under a named folder",
			Destination: &folder,
		},
		cli.IntFlag{
			Name:        "max-connection, x",
			Usage:       "specify the number of maximum parallel connections",
			EnvVar:      "DLM_MAX_CONN",
			Destination: &maxConns,
		},
		cli.StringFlag{
			Name:        "user-agent, u",
			Usage:       "set a custom user agent for the download",
			Destination: &userAgent,
		},
		cli.StringFlag{
			Name:        "referer, r",
			Usage:       "set the referer header for the download",
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
		cli.BoolFlag{
			Name:        "ephemeral, e",
			Usage:       "do not persist this download across daemon restarts",
			Destination: &ephemeral,
		},
	}
)

func parseHeaders(raw []string) dlmlib.Headers {
	var headers dlmlib.Headers
	for _, h := range raw {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			k, v, ok = strings.Cut(h, "=")
		}
		if !ok {
			continue
		}
		headers.InitOrUpdate(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return headers
}

func parseCookies(raw []string) []dlmlib.Cookie {
	var cookies []dlmlib.Cookie
	for _, c := range raw {
		k, v, ok := strings.Cut(c, "=")
		if !ok {
			continue
		}
		cookies = append(cookies, dlmlib.Cookie{
			Name:  strings.TrimSpace(k),
			Value: strings.TrimSpace(v),
		})
	}
	return cookies
}

func download(ctx *cli.Context) (err error) {
	url := ctx.Args().First()
	if url == "" {
		if ctx.Command.Name == "" {
			return cmdCommon.Help(ctx)
		}
		return cmdCommon.PrintErrWithCmdHelp(
			ctx,
			errors.New("no url provided"),
		)
	} else if url == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "download", "new_client", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	client.CheckVersionMismatch(currentBuildArgs.Version)
	url = strings.TrimSpace(url)
	if maxConns > DEF_MAX_CONNS {
		maxConns = DEF_MAX_CONNS
	}

	d, err := client.Add(url, &dlmcli.AddOpts{
		FileName:       fileName,
		Folder:         folder,
		OutputPath:     dlPath,
		MaxConnections: maxConns,
		Headers:        parseHeaders(ctx.StringSlice("header")),
		Cookies:        parseCookies(ctx.StringSlice("cookie")),
		Referer:        referer,
		UserAgent:      userAgent,
		Ephemeral:      ephemeral,
	})
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "download", "add", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	name := d.FileName
	if name == "" {
		name = "(probing...)"
	}
	fmt.Printf(`
Download Info
Task Id`+"\t\t"+`: %s
Name`+"\t\t"+`: %s
Size`+"\t\t"+`: %s
`,
		d.TaskId,
		name,
		d.ContentLength.String(),
	)

	v := RegisterHandlers(client, int64(d.ContentLength))
	err = client.Listen()
	v.Wait()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "download", "listen", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	if v.Failed {
		return cli.NewExitError("", common.ExitIOError)
	}
	return nil
}
