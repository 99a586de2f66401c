package cli

import (
	"fmt"
	"time"

	"github.com/roach88/stateloop/internal/boltlog"
	"github.com/roach88/stateloop/internal/config"
	"github.com/roach88/stateloop/internal/eventlog"
	"github.com/roach88/stateloop/internal/store"
)

// boltOpenTimeout bounds the wait for another process's lock on a bolt
// file.
const boltOpenTimeout = time.Second

// openLog opens the configured event log backend.
func openLog(cfg config.EventLogConfig) (eventlog.Log, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return eventlog.NewMemory(nil), nil
	case config.BackendFile:
		f, err := eventlog.OpenFile(cfg.Path, eventlog.FileOptions{Sync: cfg.Sync})
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.BackendSQLite:
		st, err := store.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendBolt:
		l, err := boltlog.Open(cfg.Path, boltlog.Options{Timeout: boltOpenTimeout})
		if boltlog.IsLocked(err) {
			return nil, fmt.Errorf("%s is in use by another process: %w", cfg.Path, err)
		}
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown event log backend %q", cfg.Backend)
	}
}

// openLogForCommand is openLog with the error mapped by logError.
func openLogForCommand(cfg config.EventLogConfig) (eventlog.Log, error) {
	log, err := openLog(cfg)
	if err != nil {
		return nil, logError("failed to open event log", err)
	}
	return log, nil
}
