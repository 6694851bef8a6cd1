package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmcli"
)

var (
	deleteFiles  bool
	resumeFolder string

	rmFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "delete-files, d",
			Usage:       "also delete the partially downloaded data",
			Destination: &deleteFiles,
		},
	}

	resumeFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "folder, F",
			Usage:       "start every startable download filed under a folder",
			Destination: &resumeFolder,
		},
	}
)

func argTaskId(ctx *cli.Context) (string, error) {
	id := ctx.Args().First()
	if id == "" {
		return "", errors.New("no task id provided")
	}
	if id == "help" {
		return "", cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	return id, nil
}

func pause(ctx *cli.Context) error {
	id, err := argTaskId(ctx)
	if err != nil || id == "" {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "pause", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.Pause(id); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "pause", "pause", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	fmt.Println("Paused:", id)
	return nil
}

func resume(ctx *cli.Context) error {
	if resumeFolder != "" {
		return resumeByFolder(ctx)
	}
	id, err := argTaskId(ctx)
	if err != nil || id == "" {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "resume", "new_client", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	client.CheckVersionMismatch(currentBuildArgs.Version)
	if err := client.Resume(id); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "resume", "resume", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	return followTask(ctx, client, id)
}

func resumeByFolder(ctx *cli.Context) error {
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "resume", "new_client", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	defer client.Close()
	client.CheckVersionMismatch(currentBuildArgs.Version)
	resp, err := client.StartFolder(resumeFolder)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "resume", "start_folder", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	fmt.Printf("Started %d download(s) in folder %s\n", len(resp.TaskIds), resumeFolder)
	for _, id := range resp.TaskIds {
		fmt.Println(" ", id)
	}
	return nil
}

func retry(ctx *cli.Context) error {
	id, err := argTaskId(ctx)
	if err != nil || id == "" {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "retry", "new_client", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	if err := client.Retry(id); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "retry", "retry", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	return followTask(ctx, client, id)
}

func remove(ctx *cli.Context) error {
	id, err := argTaskId(ctx)
	if err != nil || id == "" {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "remove", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.Remove(id, deleteFiles); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "remove", "remove", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	fmt.Println("Removed:", id)
	return nil
}

func attach(ctx *cli.Context) error {
	id, err := argTaskId(ctx)
	if err != nil || id == "" {
		return cmdCommon.PrintErrWithCmdHelp(ctx, err)
	}
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "attach", "new_client", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	client.CheckVersionMismatch(currentBuildArgs.Version)
	return followTask(ctx, client, id)
}

// followTask attaches to a task and renders its streamed progress until
// it reaches a settled state.
func followTask(ctx *cli.Context, client *dlmcli.Client, id string) error {
	t, err := client.Attach(id)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "attach", "client-attach", err)
		return cli.NewExitError("", common.ExitUserError)
	}
	fmt.Printf(`
Download Info
Task Id`+"\t\t"+`: %s
Name`+"\t\t"+`: %s
Size`+"\t\t"+`: %s
State`+"\t\t"+`: %s
`,
		t.TaskId,
		t.FileName,
		t.ContentLength.String(),
		t.State,
	)
	v := RegisterHandlers(client, int64(t.ContentLength))
	if int64(t.Downloaded) > 0 {
		v.bar.SetCurrent(int64(t.Downloaded))
		v.sc.flushed = int64(t.Downloaded)
	}
	err = client.Listen()
	v.Wait()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "attach", "listen", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	if v.Failed {
		return cli.NewExitError("", common.ExitIOError)
	}
	return nil
}

func stopDaemon(ctx *cli.Context) error {
	client, err := dlmcli.NewClient()
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "stop-daemon", "new_client", err)
		return nil
	}
	defer client.Close()
	if err := client.StopDaemon(); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "stop-daemon", "stop", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	fmt.Println("Daemon stopped.")
	return nil
}
