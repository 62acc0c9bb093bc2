package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"crewsched/pkg/logx"
)

const (
	// storeRelPath is the well-known location of the schedule collection
	// under the project root. The CLI and the service must agree on it.
	storeRelPath = "db/schedules.json"
	lockSuffix   = ".lock"
)

// document is the on-disk shape. Records are kept raw so that entries this
// build cannot decode (written by a newer build, or hand-edited) survive
// mutations of their neighbors untouched.
type document struct {
	Schedules []json.RawMessage `json:"schedules"`
}

// Store is the single owner of the on-disk schedule collection.
//
// Mutations take both an in-process mutex and a cross-process flock: the
// flock serializes the CLI, the UI and the service against each other, the
// mutex serializes goroutines within one process (a flock handle is
// effectively reentrant for its own process, so it cannot do that job).
type Store struct {
	path string
	mu   sync.Mutex
	fl   *flock.Flock
	log  logx.Logger

	now func() time.Time
}

// NewStore opens (lazily) the schedule store under root.
func NewStore(root string, log logx.Logger) *Store {
	path := filepath.Join(root, filepath.FromSlash(storeRelPath))
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		path: path,
		fl:   flock.New(path + lockSuffix),
		log:  log,
		now:  time.Now,
	}
}

// Path returns the backing file location. The scheduler polls its mtime.
func (s *Store) Path() string { return s.path }

// List returns the current collection. A missing or unreadable file yields
// an empty result, and individual records that do not decode into an Entry
// are dropped; the store favors availability over strict validation.
// List takes no lock: the rename-based write protocol guarantees a reader
// sees either the pre- or post-write document, never a torn one.
func (s *Store) List() []Entry {
	doc := s.read()
	out := make([]Entry, 0, len(doc.Schedules))
	for _, raw := range doc.Schedules {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.log.Debug("dropping malformed schedule record", logx.Err(err))
			continue
		}
		if strings.TrimSpace(e.ID) == "" {
			s.log.Debug("dropping schedule record without id")
			continue
		}
		out = append(out, e)
	}
	return out
}

// Get returns the entry with the given id, if present.
func (s *Store) Get(id string) (Entry, bool) {
	for _, e := range s.List() {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Upsert stores the entry, replacing any record with the same id (whole-entry
// replace) or appending a new one. An empty id gets a fresh UUID. UpdatedAt
// is bumped to now; the stored entry is returned.
func (s *Store) Upsert(entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fl.Lock(); err != nil {
		return Entry{}, fmt.Errorf("schedule store: acquire lock: %w", err)
	}
	defer func() { _ = s.fl.Unlock() }()

	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if strings.TrimSpace(entry.Name) == "" {
		entry.Name = entry.ID
	}

	doc := s.read()
	now := s.now().UTC()

	replaced := false
	for i, raw := range doc.Schedules {
		if recordID(raw) != entry.ID {
			continue
		}
		var prev Entry
		_ = json.Unmarshal(raw, &prev)
		if entry.CreatedAt == "" {
			entry.CreatedAt = prev.CreatedAt
		}
		// UpdatedAt must never move backwards for an id, even if the wall
		// clock does.
		if old, err := time.Parse(timestampLayout, prev.UpdatedAt); err == nil && !now.After(old) {
			now = old.Add(time.Nanosecond)
		}
		entry.UpdatedAt = now.Format(timestampLayout)
		b, err := json.Marshal(entry)
		if err != nil {
			return Entry{}, fmt.Errorf("schedule store: encode entry %s: %w", entry.ID, err)
		}
		doc.Schedules[i] = b
		replaced = true
		break
	}
	if !replaced {
		if entry.CreatedAt == "" {
			entry.CreatedAt = now.Format(timestampLayout)
		}
		entry.UpdatedAt = now.Format(timestampLayout)
		b, err := json.Marshal(entry)
		if err != nil {
			return Entry{}, fmt.Errorf("schedule store: encode entry %s: %w", entry.ID, err)
		}
		doc.Schedules = append(doc.Schedules, b)
	}

	if err := s.write(doc); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Delete removes the record with the given id. It reports whether a record
// was removed; deleting an absent id is a no-op returning false, and the
// file is only rewritten when something actually changed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fl.Lock(); err != nil {
		return false, fmt.Errorf("schedule store: acquire lock: %w", err)
	}
	defer func() { _ = s.fl.Unlock() }()

	doc := s.read()
	kept := doc.Schedules[:0]
	for _, raw := range doc.Schedules {
		if recordID(raw) == id {
			continue
		}
		kept = append(kept, raw)
	}
	if len(kept) == len(doc.Schedules) {
		return false, nil
	}
	doc.Schedules = kept
	if err := s.write(doc); err != nil {
		return false, err
	}
	return true, nil
}

// read loads the on-disk document. Missing file and parse failures both come
// back as an empty collection (first-run semantics; see the package doc for
// the trade-off this makes against detecting corruption).
func (s *Store) read() document {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("schedule store unreadable; treating as empty", logx.String("path", s.path), logx.Err(err))
		}
		return document{}
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		s.log.Warn("schedule store undecodable; treating as empty", logx.String("path", s.path), logx.Err(err))
		return document{}
	}
	return doc
}

// write renders the full document to a temp file in the store directory and
// renames it over the target. Readers never see a half-written file.
func (s *Store) write(doc document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("schedule store: create dir: %w", err)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("schedule store: encode: %w", err)
	}

	f, err := os.CreateTemp(dir, ".schedules-*.json.tmp")
	if err != nil {
		return fmt.Errorf("schedule store: create temp: %w", err)
	}
	tmp := f.Name()
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		cleanup()
		return fmt.Errorf("schedule store: write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("schedule store: sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("schedule store: close temp: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("schedule store: chmod temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("schedule store: replace %s: %w", s.path, err)
	}
	return nil
}

// recordID extracts just the id from a raw record, tolerating records that
// otherwise fail to decode.
func recordID(raw json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ID
}
