// Package flowstore implements flow.Store as one JSON file per flow under
// a data directory, grounded on the teacher's eventbus.PersistentBus. Unlike
// its append-only WAL, every write rewrites the flow's whole snapshot to a
// temp file and renames it into place, under a mutex.
package flowstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	"go.uber.org/zap"
)

// perFlowFile holds the full on-disk snapshot for one flow: a flat object
// of userID (as a decimal string key) to raw JSON record, plus the lock
// serializing reads/writes against that one file.
type perFlowFile struct {
	mu      sync.Mutex
	path    string
	records map[string]json.RawMessage
}

// FileStore is the durable, process-wide flow.Store of §4.1. Each flow
// gets its own file and its own lock so that a slow flush on one flow
// never blocks turns touching a different flow.
type FileStore struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex // protects the files map itself, not its contents
	files map[flow.Name]*perFlowFile
}

// NewFileStore opens (creating if absent) the data directory that will
// hold one pending_<flow>.json file per flow.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flowstore: create data dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger, files: make(map[flow.Name]*perFlowFile)}, nil
}

func (s *FileStore) filenameFor(f flow.Name) string {
	return filepath.Join(s.dir, fmt.Sprintf("pending_%s.json", f))
}

// fileFor returns the perFlowFile for f, lazily rehydrating it from disk
// on first access.
func (s *FileStore) fileFor(f flow.Name) (*perFlowFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pf, ok := s.files[f]; ok {
		return pf, nil
	}

	pf := &perFlowFile{path: s.filenameFor(f), records: make(map[string]json.RawMessage)}
	data, err := os.ReadFile(pf.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("flowstore: read %s: %w", pf.path, err)
		}
	} else if len(data) > 0 {
		if err := json.Unmarshal(data, &pf.records); err != nil {
			s.logger.Warn("flowstore: corrupt pending file, starting empty", zap.String("path", pf.path), zap.Error(err))
			pf.records = make(map[string]json.RawMessage)
		}
	}

	s.files[f] = pf
	return pf, nil
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Get implements flow.Store.
func (s *FileStore) Get(ctx context.Context, f flow.Name, userID int64, dest interface{}) (bool, error) {
	pf, err := s.fileFor(f)
	if err != nil {
		return false, err
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()

	raw, ok := pf.records[userKey(userID)]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("flowstore: decode record for %s/%d: %w", f, userID, err)
	}
	return true, nil
}

// Set implements flow.Store. The flush failure is logged and swallowed —
// the in-memory map stays authoritative for the remainder of the turn,
// matching the teacher's WAL-write error handling.
func (s *FileStore) Set(ctx context.Context, f flow.Name, userID int64, record interface{}) error {
	pf, err := s.fileFor(f)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("flowstore: encode record for %s/%d: %w", f, userID, err)
	}

	pf.mu.Lock()
	pf.records[userKey(userID)] = raw
	flushErr := s.flushLocked(pf)
	pf.mu.Unlock()

	if flushErr != nil {
		s.logger.Error("flowstore: flush failed, record kept in memory only", zap.String("flow", string(f)), zap.Error(flushErr))
	}
	return nil
}

// Clear implements flow.Store.
func (s *FileStore) Clear(ctx context.Context, f flow.Name, userID int64) error {
	pf, err := s.fileFor(f)
	if err != nil {
		return err
	}
	pf.mu.Lock()
	delete(pf.records, userKey(userID))
	flushErr := s.flushLocked(pf)
	pf.mu.Unlock()

	if flushErr != nil {
		s.logger.Error("flowstore: flush failed on clear", zap.String("flow", string(f)), zap.Error(flushErr))
	}
	return nil
}

// flushLocked writes pf's full snapshot to disk. Caller must hold pf.mu.
func (s *FileStore) flushLocked(pf *perFlowFile) error {
	data, err := json.MarshalIndent(pf.records, "", "  ")
	if err != nil {
		return err
	}
	tmp := pf.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, pf.path)
}

var _ flow.Store = (*FileStore)(nil)
