package server

import (
	"encoding/json"
	"testing"

	"github.com/abdu1rhmaan/dlm/common"
)

func TestParseRequest(t *testing.T) {
	b := []byte(`{"method":"add","message":{"url":"http://example.com/f"}}`)
	req, err := ParseRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != common.UPDATE_ADD {
		t.Errorf("method = %q", req.Method)
	}
	var p common.AddParams
	if err := json.Unmarshal(req.Message, &p); err != nil {
		t.Fatal(err)
	}
	if p.Url != "http://example.com/f" {
		t.Errorf("url = %q", p.Url)
	}

	if _, err := ParseRequest([]byte("{not json")); err == nil {
		t.Error("malformed request accepted")
	}
}

func TestMakeResult(t *testing.T) {
	b := MakeResult(common.UPDATE_VERSION, &common.VersionResponse{Version: "1.2.3"})
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Ok || resp.Error != "" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Update == nil || resp.Update.Type != common.UPDATE_VERSION {
		t.Errorf("update = %+v", resp.Update)
	}
}

func TestCreateError(t *testing.T) {
	var resp Response
	if err := json.Unmarshal(CreateError("task not found"), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ok || resp.Error != "task not found" {
		t.Errorf("response = %+v", resp)
	}

	if err := json.Unmarshal(InitError(nil), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ok || resp.Error == "" {
		t.Errorf("nil error response = %+v", resp)
	}
}
