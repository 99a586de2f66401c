package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stateloop/internal/catalog"
	"github.com/roach88/stateloop/internal/eventlog"
)

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a config selecting backend at path and returns the
// config file's path.
func writeConfig(t *testing.T, backend, path string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "stateloop.yaml")
	doc := fmt.Sprintf("log:\n  level: error\neventlog:\n  backend: %s\n  path: %q\ncatalog:\n  debounce: 1ms\n", backend, path)
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o644))
	return cfgPath
}

// seedFileLog appends events to a new file log at path.
func seedFileLog(t *testing.T, path string, events ...catalog.Event) {
	t.Helper()
	log, err := eventlog.OpenFile(path, eventlog.FileOptions{})
	require.NoError(t, err)
	journal := catalog.NewService(log, nil, nil).Journal()
	for _, ev := range events {
		_, err := journal.Append(context.Background(), ev)
		require.NoError(t, err)
	}
	require.NoError(t, log.Close())
}

// tamper rewrites the first occurrence of old in the file at path.
func tamper(t *testing.T, path, old, new string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), old, new, 1)
	require.NotEqual(t, string(data), tampered, "nothing to tamper with")
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))
}
