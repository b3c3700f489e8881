// Package uistate persists deck UI state between runs: layout mode, split
// ratio, the agent pane collapse flag, and the conversation thread ids.
package uistate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/schema"
)

const stateFile = "ui.json"

// LayoutState captures the layout portion of the UI.
type LayoutState struct {
	Mode           schema.LayoutMode `json:"mode"`
	SplitRatio     float64           `json:"split_ratio"`
	AgentCollapsed bool              `json:"agent_collapsed"`
}

// ThreadState captures conversation continuity per turn source.
type ThreadState struct {
	Chat  schema.ThreadID `json:"chat,omitempty"`
	Agent schema.ThreadID `json:"agent,omitempty"`
}

// Snapshot is everything the deck restores on startup.
type Snapshot struct {
	Layout  LayoutState    `json:"layout"`
	Threads ThreadState    `json:"threads"`
	Model   schema.ModelID `json:"model,omitempty"`
}

// Store persists the deck snapshot to a single JSON file.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a store rooted at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads the snapshot. The second return is false when no state exists yet.
func (s *Store) Load() (Snapshot, bool, error) {
	path := filepath.Join(s.dir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("ui state load miss")
			}
			return Snapshot{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("ui state load failed", "err", err)
		}
		return Snapshot{}, false, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		if s.log != nil {
			s.log.Warn("ui state load failed", "err", err)
		}
		return Snapshot{}, false, err
	}
	if s.log != nil {
		s.log.Debug("ui state load ok", "layout", snapshot.Layout.Mode)
	}
	return snapshot, true, nil
}

// Save writes the snapshot atomically via a temp file rename.
func (s *Store) Save(snapshot Snapshot) error {
	path := filepath.Join(s.dir, stateFile)
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return s.saveFailed(err)
	}
	tmp, err := os.CreateTemp(s.dir, "ui-*.json")
	if err != nil {
		return s.saveFailed(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return s.saveFailed(err)
	}
	if s.log != nil {
		s.log.Trace("ui state save ok", "layout", snapshot.Layout.Mode)
	}
	return nil
}

func (s *Store) saveFailed(err error) error {
	if s.log != nil {
		s.log.Warn("ui state save failed", "err", err)
	}
	return err
}
