package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

// run executes one CLI invocation against the given ledger and returns stdout.
func run(t *testing.T, uri string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--ledger", uri}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Workflow(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	uri := "fs://" + dir
	proc := []string{"--id", "PR-2024-017", "--title", "Road Repair"}
	key := "PR-2024-017-road-repair"

	t.Run("Missing Ledger", func(t *testing.T) {
		_, err := run(t, uri, "list")
		assert.Error(t, err, "only init creates a file ledger")
	})

	out, err := run(t, uri, "init")
	require.NoError(t, err)
	assert.Equal(t, "Initialized ledger in "+dir+"\n", out)

	out, err = run(t, uri, append([]string{"advance", "initiate",
		"--doc", "document_type=Purchase Request,hash=9f2c,file_key=pr/017.pdf,file_size=2048"}, proc...)...)
	require.NoError(t, err)
	assert.Contains(t, out, key)
	assert.Contains(t, out, "PR Submitted")

	out, err = run(t, uri, append([]string{"next"}, proc...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "approve_pr")

	_, err = run(t, uri, append([]string{"advance", "open_bids"}, proc...)...)
	assert.ErrorIs(t, err, workflow.ErrActionNotAllowed)

	_, err = run(t, uri, append([]string{"advance", "approve_pr", "--details", "Approved by HOPE"}, proc...)...)
	require.NoError(t, err)

	_, err = run(t, uri, append([]string{"event", "note", "--details", "Budget confirmed"}, proc...)...)
	require.NoError(t, err)

	t.Run("Show", func(t *testing.T) {
		out, err := run(t, uri, "show", "--key", key, "-o", "json")
		require.NoError(t, err)

		var view struct {
			Key        string `json:"key"`
			Status     string `json:"status"`
			Stage      string `json:"stage"`
			NextAction struct {
				Name string `json:"name"`
			} `json:"next_action"`
			Timeline []json.RawMessage `json:"timeline"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Equal(t, key, view.Key)
		assert.Equal(t, "PR Approved", view.Status)
		assert.Equal(t, "PR Initiation", view.Stage)
		assert.Equal(t, "pre_procurement", view.NextAction.Name)
		// two statuses, upload + created + transition + note events
		assert.Len(t, view.Timeline, 6)
	})

	t.Run("Table Output", func(t *testing.T) {
		out, err := run(t, uri, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "KEY")
		assert.Contains(t, out, key)

		out, err = run(t, uri, "show", "--key", key)
		require.NoError(t, err)
		assert.Contains(t, out, "Next action:  pre_procurement")
	})

	t.Run("Records", func(t *testing.T) {
		out, err := run(t, uri, "records", "status", "--key", key, "-o", "json")
		require.NoError(t, err)
		var recs []recordView
		require.NoError(t, json.Unmarshal([]byte(out), &recs))
		require.Len(t, recs, 2)
		assert.Equal(t, "PR Submitted", recs[0].Payload.String("current_status"))
		assert.Equal(t, core.Fingerprint(recs[1].Payload), recs[1].Fingerprint)

		_, err = run(t, uri, "records", "ledger")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("Read Only", func(t *testing.T) {
		_, err := run(t, uri, append([]string{"--read-only", "event", "note"}, proc...)...)
		assert.ErrorIs(t, err, core.ErrReadOnly)
	})
}

func TestCLI_Standalone(t *testing.T) {
	uri := "memory://"

	out, err := run(t, uri, "key", "PR-1", "Laptops, Printers & Toner!!")
	require.NoError(t, err)
	assert.Equal(t, "PR-1-laptops-printers-toner\n", out)

	out, err = run(t, uri, "version")
	require.NoError(t, err)
	assert.Equal(t, "bidtrail version 0.1.0\n", out)

	out, err = run(t, uri, "stages", "--export", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "approve_pr")
	assert.Contains(t, out, "Pre-Procurement Conference Skipped")

	out, err = run(t, uri, "stages", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "PR Initiation")

	_, err = run(t, uri, "list", "-o", "xml")
	assert.Error(t, err)
}

func TestParseDoc(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    core.Metadata
		wantErr bool
	}{
		{
			name: "Full",
			raw:  "document_type=Bid Document, hash=9f2c ,file_key=bids/a.pdf,file_size=1024,bidder=ACME",
			want: core.Metadata{"document_type": "Bid Document", "hash": "9f2c", "file_key": "bids/a.pdf", "file_size": int64(1024), "bidder": "ACME"},
		},
		{name: "Trailing Comma", raw: "hash=1,", want: core.Metadata{"hash": "1"}},
		{name: "Missing Value Separator", raw: "hash", wantErr: true},
		{name: "Bad Size", raw: "file_size=big", wantErr: true},
		{name: "Empty", raw: " , ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDoc(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
