// Package state persists the last delivered release per repository between
// runs. The on-disk form is an indented JSON object (name -> release id) so
// operators can hand-edit it: deleting an entry re-notifies that repository.
package state

import (
	"encoding/json"
	"fmt"
	"os"

	"relwatch/pkg/logx"
)

// Store holds the last-seen release ids for one run.
//
// A Store is loaded once at startup and persisted after every delivered
// notification. It is not safe for concurrent use; runs are sequential.
type Store struct {
	path string
	log  logx.Logger

	seen map[string]int64
}

// Open loads the state file at path.
//
// A missing file yields an empty store (first run). Unreadable content
// yields an empty store with a warning: re-notifying is preferred over
// refusing to run. Any other read error is returned and must abort the run
// before repositories are checked.
func Open(path string, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{path: path, log: log, seen: make(map[string]int64)}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("state file missing; starting empty", logx.String("path", path))
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var seen map[string]int64
	if err := json.Unmarshal(b, &seen); err != nil {
		log.Warn("state file corrupt; starting empty",
			logx.String("path", path),
			logx.Err(err),
		)
		return s, nil
	}
	if seen != nil {
		s.seen = seen
	}
	return s, nil
}

// LastSeen returns the recorded release id for name.
func (s *Store) LastSeen(name string) (int64, bool) {
	id, ok := s.seen[name]
	return id, ok
}

// MarkSeen records the release id for name in memory.
// Call Persist to make it durable.
func (s *Store) MarkSeen(name string, id int64) {
	s.seen[name] = id
}

// Len returns the number of tracked repositories.
func (s *Store) Len() int { return len(s.seen) }

// Persist writes the whole state atomically: temp file, fsync, rename.
// A reader never observes a partially written file.
func (s *Store) Persist() error {
	b, err := json.MarshalIndent(s.seen, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open temp state file: %w", err)
	}
	if _, err := out.Write(b); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp state file: %w", err)
	}
	_ = out.Sync()
	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
