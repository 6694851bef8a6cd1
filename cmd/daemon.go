package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/api"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/internal/store"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
	"github.com/abdu1rhmaan/dlm/pkg/logger"
)

var (
	daemonPort   int
	rpcSecret    string
	rpcListenAll bool
	maxParallel  int
	rootDir      string

	daemonFlags = []cli.Flag{
		cli.IntFlag{
			Name:        "port, p",
			Usage:       "tcp fallback port for the daemon",
			EnvVar:      common.TCPPortEnv,
			Value:       common.DefaultTCPPort,
			Destination: &daemonPort,
		},
		cli.StringFlag{
			Name:        "rpc-secret",
			Usage:       "bearer token required on the json-rpc endpoints (disabled if empty)",
			EnvVar:      "DLM_RPC_SECRET",
			Destination: &rpcSecret,
		},
		cli.BoolFlag{
			Name:        "rpc-listen-all",
			Usage:       "bind the web endpoint on all interfaces instead of loopback",
			Destination: &rpcListenAll,
		},
		cli.IntFlag{
			Name:        "max-parallel, n",
			Usage:       "number of downloads allowed to run at once",
			EnvVar:      "DLM_MAX_PARALLEL",
			Destination: &maxParallel,
		},
		cli.StringFlag{
			Name:        "root-dir",
			Usage:       "override the dlm root directory",
			EnvVar:      dlmlib.RootDirEnv,
			Destination: &rootDir,
		},
	}
)

func daemon(ctx *cli.Context) error {
	l := log.Default()
	dlog := logger.NewStandardLogger(l)
	defer dlog.Close()

	if rootDir != "" {
		if err := dlmlib.SetRootDir(rootDir); err != nil {
			cmdCommon.PrintRuntimeErr(ctx, "daemon", "root_dir", err)
			return cli.NewExitError("", common.ExitIOError)
		}
	}
	st, err := store.Open(dlmlib.StorePath)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "daemon", "open_store", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	defer st.Close()

	handlers := &dlmlib.Handlers{}
	eng, err := dlmlib.NewEngine(&dlmlib.EngineOpts{
		Repo:        st,
		Handlers:    handlers,
		Logger:      l,
		MaxParallel: maxParallel,
	})
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "daemon", "new_engine", err)
		return cli.NewExitError("", common.ExitIOError)
	}

	sctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serv := server.NewServer(l, eng, st, &server.RPCConfig{
		Secret:    rpcSecret,
		ListenAll: rpcListenAll,
		Version:   currentBuildArgs.Version,
	}, daemonPort)

	s, err := api.NewApi(l, eng, st, currentBuildArgs.Version, cancel)
	if err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "daemon", "new_api", err)
		return cli.NewExitError("", common.ExitIOError)
	}
	s.RegisterHandlers(serv)
	api.BindHandlers(handlers, serv.Pool(), serv.Notifier())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var interrupted bool
	go func() {
		select {
		case <-sig:
			dlog.Info("interrupt received, shutting down")
			interrupted = true
			cancel()
		case <-sctx.Done():
		}
	}()

	dlog.Info("daemon listening (root: %s)", dlmlib.RootDir)
	if err := serv.Start(sctx); err != nil {
		cmdCommon.PrintRuntimeErr(ctx, "daemon", "serve", err)
		return cli.NewExitError("", common.ExitIOError)
	}

	shutdownCtx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		dlog.Warning("engine shutdown: %v", err)
	}
	if interrupted {
		return cli.NewExitError("", common.ExitInterrupted)
	}
	return nil
}
