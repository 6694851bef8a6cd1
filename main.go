package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/abdu1rhmaan/dlm/cmd"
)

var (
	version   string
	commit    string
	date      string
	buildType string = "unclassified"
)

func main() {
	err := cmd.Execute(os.Args, cmd.BuildArgs{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuildType: buildType,
	})
	if err == nil {
		return
	}
	if ec, ok := err.(cli.ExitCoder); ok {
		if msg := ec.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "dlm: %s\n", msg)
		}
		os.Exit(ec.ExitCode())
	}
	fmt.Printf("dlm: %s\n", err.Error())
	os.Exit(1)
}
