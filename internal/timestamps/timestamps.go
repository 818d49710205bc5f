// SPDX-License-Identifier: MIT

// Package timestamps persists the engine's sync watermark and next
// scheduled-sync time as a small JSON sidecar, written atomically on every
// mutation (unlike LastKnownStore, which batches writes at bulk-action
// boundaries, the scheduling state changes rarely enough that write-through
// is simplest and matches the original addon's behavior).
package timestamps

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// defaultNextScheduled is the sentinel "never scheduled" value: a date far
// enough in the past that is_scheduled_sync_due is true the moment
// scheduling is enabled.
var defaultNextScheduled = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

type diskFormat struct {
	LastSync      string `json:"last_sync"`
	NextScheduled string `json:"next_scheduled"`
}

// Store holds {last_sync, next_scheduled}, backed by a JSON file at path.
type Store struct {
	mu            sync.Mutex
	path          string
	lastSync      time.Time
	nextScheduled time.Time
}

// Open loads path, or initializes defaults (last_sync=now, next_scheduled
// = epoch 1980-01-01) if the file is missing or unparseable.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.resetDefaults()
			return s, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var df diskFormat
	if err := json.Unmarshal(raw, &df); err != nil {
		s.resetDefaults()
		return s, nil
	}

	lastSync, err1 := time.Parse(time.RFC3339, df.LastSync)
	nextScheduled, err2 := time.Parse(time.RFC3339, df.NextScheduled)
	if err1 != nil || err2 != nil {
		s.resetDefaults()
		return s, nil
	}

	s.lastSync = lastSync.UTC()
	s.nextScheduled = nextScheduled
	return s, nil
}

func (s *Store) resetDefaults() {
	s.lastSync = time.Now().UTC()
	s.nextScheduled = defaultNextScheduled
}

// LastSync returns the watermark of the last completed sync.
func (s *Store) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// SetLastSync updates and persists the sync watermark.
func (s *Store) SetLastSync(t time.Time) error {
	s.mu.Lock()
	s.lastSync = t.UTC()
	s.mu.Unlock()
	return s.write()
}

// NextScheduled returns the next scheduled-sync local time.
func (s *Store) NextScheduled() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextScheduled
}

// SetNextScheduled updates and persists the next scheduled-sync time.
func (s *Store) SetNextScheduled(t time.Time) error {
	s.mu.Lock()
	s.nextScheduled = t
	s.mu.Unlock()
	return s.write()
}

func (s *Store) write() error {
	s.mu.Lock()
	df := diskFormat{
		LastSync:      s.lastSync.Truncate(time.Second).Format(time.RFC3339),
		NextScheduled: s.nextScheduled.Truncate(time.Second).Format(time.RFC3339),
	}
	s.mu.Unlock()

	raw, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("encode timestamps: %w", err)
	}

	pf, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fmt.Errorf("create pending timestamps file: %w", err)
	}
	defer pf.Cleanup()

	if _, err := pf.Write(raw); err != nil {
		return fmt.Errorf("write timestamps: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace timestamps file: %w", err)
	}
	return nil
}
