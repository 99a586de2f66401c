package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand_PrintsDefaults(t *testing.T) {
	out, err := execute(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: sqlite")
	assert.Contains(t, out, "max_concurrent: 16")
}

func TestConfigCommand_JSON(t *testing.T) {
	cfgPath := writeConfig(t, "file", "/tmp/events.jsonl")
	out, err := execute(t, "", "config", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			EventLog struct {
				Backend string `json:"backend"`
				Path    string `json:"path"`
			} `json:"eventlog"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "file", resp.Data.EventLog.Backend)
	assert.Equal(t, "/tmp/events.jsonl", resp.Data.EventLog.Path)
}

func TestConfigCommand_RejectsSchemaViolation(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("eventlog:\n  backend: postgres\n"), 0o644))

	_, err := execute(t, "", "validate-config", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestConfigCommand_SchemaViolationJSON(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("eventlog:\n  backend: postgres\n"), 0o644))

	out, err := execute(t, "", "config", "--config", cfgPath, "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUsage, resp.Error.Code)
	assert.Equal(t, "invalid configuration", resp.Error.Message)
	assert.NotEmpty(t, resp.Error.Cause)
}
