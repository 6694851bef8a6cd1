package cmd

import (
	"fmt"
	"time"

	"github.com/vbauerster/mpb/v8"

	cmdCommon "github.com/abdu1rhmaan/dlm/cmd/common"
	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmcli"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// progressView bundles the bar, speed counter and client used while
// following one task's streamed updates.
type progressView struct {
	client *dlmcli.Client
	sc     *SpeedCounter
	bar    *mpb.Bar
	p      *mpb.Progress
	// Failed is set when the daemon streams a terminal failure.
	Failed bool
}

func (v *progressView) handle(dr *common.DownloadingResponse) error {
	switch dr.Action {
	case common.StateChange:
		return v.stateChange(dr)
	case common.DownloadProgress:
		if dr.Total > 0 {
			v.bar.SetTotal(dr.Total, false)
		}
		v.sc.Report(dr.Value)
		return nil
	case common.SpawnSegment:
		// a new worker joined; nothing to render
		return nil
	case common.DownloadComplete:
		v.sc.Stop()
		if !v.bar.Completed() {
			v.bar.SetTotal(-1, true)
		}
		if dr.Path != "" {
			fmt.Printf("\nSaved to: %s\n", dr.Path)
		}
		return dlmcli.ErrDisconnect
	case common.DownloadFailed:
		v.Failed = true
		v.sc.Stop()
		v.bar.Abort(false)
		fmt.Printf("\nDownload failed: %s\n", dr.Error)
		return dlmcli.ErrDisconnect
	case common.SessionRenewal:
		v.sc.Stop()
		v.bar.Abort(false)
		fmt.Printf("\nSession expired for this download.\n")
		fmt.Printf("Re-capture the session and run: dlm renew %s\n", dr.TaskId)
		return dlmcli.ErrDisconnect
	}
	return nil
}

func (v *progressView) stateChange(dr *common.DownloadingResponse) error {
	switch dlmlib.TaskState(dr.State) {
	case dlmlib.StatePaused:
		v.sc.Stop()
		v.bar.Abort(false)
		fmt.Printf("\nDownload paused: %s\n", dr.TaskId)
		return dlmcli.ErrDisconnect
	case dlmlib.StateCancelled:
		v.sc.Stop()
		v.bar.Abort(false)
		fmt.Printf("\nDownload cancelled: %s\n", dr.TaskId)
		return dlmcli.ErrDisconnect
	}
	return nil
}

// Wait flushes the progress output after Listen returns.
func (v *progressView) Wait() {
	v.sc.Stop()
	v.p.Wait()
}

// RegisterHandlers wires a progress bar to the client's streamed task
// updates.
func RegisterHandlers(client *dlmcli.Client, contentLength int64) *progressView {
	rr := time.Millisecond * 30
	sc := NewSpeedCounter(rr)
	p := mpb.New(mpb.WithWidth(64), mpb.WithRefreshRate(rr))
	bar := cmdCommon.InitBar(p, "", contentLength)
	sc.SetBar(bar)
	sc.Start()

	v := &progressView{client: client, sc: sc, bar: bar, p: p}
	client.AddHandler(
		common.UPDATE_DOWNLOADING,
		dlmcli.NewDownloadingHandler("", v.handle),
	)
	return v
}
