package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/streamswap/internal/cli"
)

const script = `
{"type": "create_stream", "name": "cli launch", "creator": "creator",
 "out_asset": {"denom": "uout", "amount": "1000000"}, "in_denom": "uin",
 "start_time": "2026-01-01T00:00:00Z", "end_time": "2026-01-01T00:01:40Z"}
{"type": "subscribe", "stream_id": "$last", "sender": "alice", "amount": "100"}
{"type": "update_position", "stream_id": "$last", "sender": "alice", "at": "2026-01-01T00:00:50Z"}
`

func writeConfig(t *testing.T, driver string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "streamswap.yaml")
	body := "driver: " + driver + "\n" +
		"dsn: " + filepath.Join(dir, "streamswap.db") + "\n" +
		"admin: admin\n" +
		"log_level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type receipt struct {
	Command  string `json:"command"`
	StreamID string `json:"stream_id"`
	Status   string `json:"status"`
	Spent    string `json:"spent"`
}

func decodeReceipts(t *testing.T, out string) []receipt {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(out))
	var receipts []receipt
	for {
		var r receipt
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			return receipts
		}
		require.NoError(t, err)
		receipts = append(receipts, r)
	}
}

func TestExecAndInspect(t *testing.T) {
	cfg := writeConfig(t, "sqlite")

	out, err := run(t, "", "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated sqlite store")

	out, err = run(t, script, "--config", cfg, "--now", "2026-01-01T00:00:00Z", "exec")
	require.NoError(t, err)

	receipts := decodeReceipts(t, out)
	require.Len(t, receipts, 3)
	assert.Equal(t, "create_stream", receipts[0].Command)
	assert.Equal(t, "subscribe", receipts[1].Command)
	assert.Equal(t, "update_position", receipts[2].Command)
	assert.Equal(t, "50", receipts[2].Spent)
	sid := receipts[0].StreamID
	assert.Equal(t, sid, receipts[2].StreamID)

	out, err = run(t, "", "--config", cfg, "--now", "2026-01-01T00:00:50Z", "stream", sid)
	require.NoError(t, err)
	var view struct {
		Stream struct {
			Status  string `json:"status"`
			SpentIn string `json:"spent_in"`
		} `json:"stream"`
		Threshold struct {
			Set bool `json:"set"`
		} `json:"threshold"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "active", view.Stream.Status)
	assert.Equal(t, "50", view.Stream.SpentIn)
	assert.False(t, view.Threshold.Set)

	out, err = run(t, "", "--config", cfg, "--now", "2026-01-01T00:01:00Z", "position", sid, "alice")
	require.NoError(t, err)
	var pos struct {
		Owner     string `json:"owner"`
		InBalance string `json:"in_balance"`
		Spent     string `json:"spent"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &pos))
	assert.Equal(t, "alice", pos.Owner)
	assert.Equal(t, "40", pos.InBalance)
	assert.Equal(t, "60", pos.Spent)

	out, err = run(t, "", "--config", cfg, "audit", sid)
	require.NoError(t, err)
	assert.Contains(t, out, `"positions": 1`)
}

func TestExecStopsOnFirstFailure(t *testing.T) {
	cfg := writeConfig(t, "memory")
	input := script + `{"type": "pause", "stream_id": "$last", "sender": "mallory"}
{"type": "resume", "stream_id": "$last", "sender": "admin"}
`
	out, err := run(t, input, "--config", cfg, "--now", "2026-01-01T00:00:00Z", "exec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command 4 (pause)")
	assert.Len(t, decodeReceipts(t, out), 3)
}

func TestExecRejectsDanglingPlaceholder(t *testing.T) {
	cfg := writeConfig(t, "memory")
	_, err := run(t, `{"type": "update_stream", "stream_id": "$last"}`, "--config", cfg, "exec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$last")
}

func TestBadNowFlag(t *testing.T) {
	cfg := writeConfig(t, "memory")
	_, err := run(t, "", "--config", cfg, "--now", "yesterday", "migrate")
	assert.ErrorContains(t, err, "--now")
}

func TestUnknownDriver(t *testing.T) {
	cfg := writeConfig(t, "cassandra")
	_, err := run(t, "", "--config", cfg, "migrate")
	assert.ErrorContains(t, err, "unknown driver")
}

func TestEnvOverridesFile(t *testing.T) {
	cfg := writeConfig(t, "cassandra")
	t.Setenv("STREAMSWAP_DRIVER", "memory")
	out, err := run(t, "", "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated memory store")
}
