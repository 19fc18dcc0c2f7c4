// Package jsonfile implements the snapshot store on plain JSON files. One
// logical snapshot is split across history.json, active_positions.json,
// account.json, and bot_status.json inside a data directory. Every write
// goes to a temporary file first and is renamed over the destination, so
// a crash can never leave a half-written file behind.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/papertrade/dogebot/internal/domain"
)

const (
	historyFile   = "history.json"
	positionsFile = "active_positions.json"
	accountFile   = "account.json"
	botStatusFile = "bot_status.json"
)

// Store persists tracker snapshots under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates the data directory if needed and returns a Store.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: create data dir %q: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With(slog.String("component", "jsonfile_store")),
	}, nil
}

// Save writes all four snapshot files. Each file is written atomically; an
// error on any file aborts the remaining writes.
func (s *Store) Save(ctx context.Context, snap domain.TrackerSnapshot) error {
	if snap.History == nil {
		snap.History = []domain.HistoryRecord{}
	}
	if snap.Open == nil {
		snap.Open = map[string]map[string]domain.Position{}
	}
	if snap.BotStatus == nil {
		snap.BotStatus = map[string]bool{}
	}

	files := []struct {
		name string
		data any
	}{
		{historyFile, snap.History},
		{positionsFile, snap.Open},
		{accountFile, snap.Account},
		{botStatusFile, snap.BotStatus},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("jsonfile: save: %w", err)
		}
		if err := s.writeAtomic(f.name, f.data); err != nil {
			return err
		}
	}
	return nil
}

// Load reads all four snapshot files. A missing or malformed file is
// replaced with its documented default (empty history, no open positions,
// zero account, no bot flags) and logged; Load itself only fails on context
// cancellation.
func (s *Store) Load(ctx context.Context) (domain.TrackerSnapshot, error) {
	snap := domain.TrackerSnapshot{
		History:   []domain.HistoryRecord{},
		Open:      map[string]map[string]domain.Position{},
		BotStatus: map[string]bool{},
	}
	if err := ctx.Err(); err != nil {
		return snap, fmt.Errorf("jsonfile: load: %w", err)
	}

	snap.History = readOrDefault(s, historyFile, snap.History)
	snap.Open = readOrDefault(s, positionsFile, snap.Open)
	snap.Account = readOrDefault(s, accountFile, snap.Account)
	snap.BotStatus = readOrDefault(s, botStatusFile, snap.BotStatus)
	return snap, nil
}

// writeAtomic serializes v and renames a temp file over name.
func (s *Store) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: marshal %s: %w", name, err)
	}

	// The temp file must live in the same directory as the destination so
	// the rename stays on one filesystem.
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: write temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: close temp for %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: rename %s: %w", name, err)
	}
	return nil
}

// readOrDefault unmarshals name into a fresh value, returning def when the
// file is absent, unreadable, or malformed. Corrupt state is logged, not
// fatal: the tracking loop must keep running.
func readOrDefault[T any](s *Store, name string, def T) T {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return def
	}
	if err != nil {
		s.logger.Warn("snapshot file unreadable, using defaults",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("snapshot file malformed, using defaults",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		return def
	}
	return v
}
