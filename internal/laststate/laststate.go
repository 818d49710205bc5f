// SPDX-License-Identifier: MIT

// Package laststate persists, per media item, the last checksum and NFO
// modification time the engine observed. It is the change-detection memory
// that lets SyncOne decide whether a host item or its sidecar NFO has moved
// since the previous sync without re-reading every file and re-fetching
// every host record on each pass.
//
// The on-disk layout is a small fixed-width binary record stream, one file
// per media type, matching the format the original Kodi addon's tracker
// used: a version header followed by id/status/checksum/mtime records.
// Keeping the format byte-compatible is not required for interop with any
// other process, but it keeps the invariants (bounded record size, tolerant
// truncated-read handling) easy to reason about and test.
package laststate

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/nfosync/nfosync/internal/media"
)

const formatVersion uint16 = 1

const (
	statusHasChecksum byte = 1 << 0
	statusHasNfoMtime byte = 1 << 1
)

// recordSize is id(4) + status(1) + checksum(4) + mtime(5) bytes.
const recordSize = 4 + 1 + 4 + 5

// Entry is the in-memory view of one tracked record.
type Entry struct {
	Checksum    uint32
	HasChecksum bool
	NfoMtime    int64 // unix seconds, truncated to 40 bits on disk
	HasNfoMtime bool
}

// tracker holds the records for a single media type and whether it has
// unwritten changes pending a flush.
type tracker struct {
	mu      sync.Mutex
	records map[uint32]Entry
	dirty   bool
	path    string
}

func newTracker(path string) *tracker {
	return &tracker{records: make(map[uint32]Entry), path: path}
}

func (t *tracker) load() error {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read version header: %w", err)
	}

	buf := make([]byte, recordSize)
	for {
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			return nil
		}
		if err == io.ErrUnexpectedEOF {
			// Tolerate a truncated trailing record, e.g. a crash mid-write.
			_ = n
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}

		id := binary.LittleEndian.Uint32(buf[0:4])
		status := buf[4]
		checksum := binary.LittleEndian.Uint32(buf[5:9])
		mtime := readUint40(buf[9:14])

		t.records[id] = Entry{
			Checksum:    checksum,
			HasChecksum: status&statusHasChecksum != 0,
			NfoMtime:    int64(mtime),
			HasNfoMtime: status&statusHasNfoMtime != 0,
		}
	}
}

func (t *tracker) get(id uint32) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.records[id]
	return e, ok
}

func (t *tracker) setChecksum(id uint32, checksum uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.records[id]
	e.Checksum = checksum
	e.HasChecksum = true
	t.records[id] = e
	t.dirty = true
}

func (t *tracker) setNfoMtime(id uint32, mtime int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.records[id]
	e.NfoMtime = mtime
	e.HasNfoMtime = true
	t.records[id] = e
	t.dirty = true
}

func (t *tracker) remove(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[id]; ok {
		delete(t.records, id)
		t.dirty = true
	}
}

// write flushes the tracker to disk atomically. It is a no-op if nothing
// changed since the last write, matching the original addon's behavior of
// never rewriting an unmodified tracker file on every sync.
func (t *tracker) write() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return nil
	}

	pf, err := renameio.NewPendingFile(t.path)
	if err != nil {
		return fmt.Errorf("create pending tracker file: %w", err)
	}
	defer pf.Cleanup()

	w := bufio.NewWriter(pf)
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return fmt.Errorf("write version header: %w", err)
	}

	buf := make([]byte, recordSize)
	for id, e := range t.records {
		binary.LittleEndian.PutUint32(buf[0:4], id)
		var status byte
		if e.HasChecksum {
			status |= statusHasChecksum
		}
		if e.HasNfoMtime {
			status |= statusHasNfoMtime
		}
		buf[4] = status
		binary.LittleEndian.PutUint32(buf[5:9], e.Checksum)
		writeUint40(buf[9:14], uint64(e.NfoMtime))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush tracker buffer: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace tracker file: %w", err)
	}

	t.dirty = false
	return nil
}

func readUint40(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32
}

func writeUint40(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
}

// Store tracks last-known checksum and NFO modification time per media
// item, with one tracker file per media.Type under dir.
type Store struct {
	trackers map[media.Type]*tracker
}

// trackerFileNames maps each media.Type to its on-disk tracker file name,
// matching spec.md §6's literal `movies.dat`/`tvshows.dat`/`episodes.dat`
// layout (plural, unlike media.Type's own singular string values).
var trackerFileNames = map[media.Type]string{
	media.TypeMovie:   "movies.dat",
	media.TypeTVShow:  "tvshows.dat",
	media.TypeEpisode: "episodes.dat",
}

// Open loads (or initializes) the trackers for every known media type,
// rooted at dir. Missing files are treated as empty trackers.
func Open(dir string) (*Store, error) {
	s := &Store{trackers: make(map[media.Type]*tracker)}
	for _, t := range media.AllTypes {
		tr := newTracker(fmt.Sprintf("%s/%s", dir, trackerFileNames[t]))
		if err := tr.load(); err != nil {
			return nil, fmt.Errorf("load tracker for %s: %w", t, err)
		}
		s.trackers[t] = tr
	}
	return s, nil
}

func (s *Store) trackerFor(t media.Type) *tracker {
	tr, ok := s.trackers[t]
	if !ok {
		tr = newTracker("")
		s.trackers[t] = tr
	}
	return tr
}

// Get returns the last-known entry for item, if any was ever recorded.
func (s *Store) Get(item media.Item) (Entry, bool) {
	return s.trackerFor(item.Type).get(item.ID)
}

// SetChecksum records the checksum observed for item during this sync pass.
func (s *Store) SetChecksum(item media.Item, checksum uint32) {
	s.trackerFor(item.Type).setChecksum(item.ID, checksum)
}

// SetNfoMtime records the NFO modification time observed for item.
func (s *Store) SetNfoMtime(item media.Item, mtime int64) {
	s.trackerFor(item.Type).setNfoMtime(item.ID, mtime)
}

// Forget removes all tracked state for item, e.g. after VideoLibrary.OnRemove.
func (s *Store) Forget(item media.Item) {
	s.trackerFor(item.Type).remove(item.ID)
}

// Count returns the number of tracked records for media type t, for the
// nfosync_lastknown_records metric.
func (s *Store) Count(t media.Type) int {
	tr := s.trackerFor(t)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.records)
}

// Write flushes every tracker with unwritten changes to disk.
func (s *Store) Write() error {
	for t, tr := range s.trackers {
		if err := tr.write(); err != nil {
			return fmt.Errorf("write tracker %s: %w", t, err)
		}
	}
	return nil
}
