package common

import (
	"encoding/json"
	"testing"

	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

func TestAddParamsJSON(t *testing.T) {
	p := AddParams{
		Url:            "http://example.com/file.bin",
		FileName:       "file.bin",
		MaxConnections: 4,
		Headers:        dlmlib.Headers{{Key: "X-Token", Value: "abc"}},
		Ephemeral:      true,
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out AddParams
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Url != p.Url || out.FileName != p.FileName || out.MaxConnections != p.MaxConnections {
		t.Fatalf("unexpected round trip: %+v", out)
	}
	if !out.Ephemeral {
		t.Error("ephemeral flag lost in round trip")
	}
}

func TestDownloadingResponseActionOmitted(t *testing.T) {
	dr := DownloadingResponse{
		TaskId: "abcd1234",
		Action: DownloadProgress,
		Value:  1024,
		Total:  4096,
	}
	b, err := json.Marshal(dr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out DownloadingResponse
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Action != DownloadProgress {
		t.Errorf("Action = %q; want %q", out.Action, DownloadProgress)
	}
	if out.Value != 1024 || out.Total != 4096 {
		t.Errorf("unexpected round trip: %+v", out)
	}
}
