package cmd

const (
	DEF_MAX_CONNS = 8
)

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const DESCRIPTION = `
Dlm is a persistent, resumable download manager. A background
daemon owns every transfer: downloads survive client exits, network
drops and machine restarts, and resume from their last verified
checkpoint.
`

const (
	ListDescription = `The list command displays the daemon's task table with
each task's id, state and progress. Completed tasks are
hidden unless requested.

Example:
        dlm list

`
	InfoDescription = `The info command probes the entered url and tries to
fetch the basic file info like name, size and whether the
server supports resumable range requests.

Example:
        dlm info https://domain.com/file.zip

`
	DownloadDescription = `The download command submits a url to the daemon and
streams its progress. The transfer keeps running in the
daemon if this client exits; reattach any time with
"dlm attach <task id>".

Example:
        dlm https://domain.com/file.zip
						OR
        dlm download https://domain.com/file.zip

`
	ResumeDescription = `The resume command re-queues a paused or interrupted task
using its task id, which you can retrieve with the
"dlm list" command.

Example:
        dlm resume <task id>

`
	ImportDescription = `The import command admits tasks from a shared task
manifest so several machines can download disjoint parts
of one file. With --parts only the named part numbers are
assigned to this node.

Example:
        dlm import task.manifest.json --parts 1,2

`
	RenewDescription = `The renew command replaces the expired session of a task
that paused with a session renewal request, then resumes
it. Cookies and headers are given as "name=value" pairs.

Example:
        dlm renew <task id> -c "token=abc123"

`
)
