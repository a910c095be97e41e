package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"moexwatch/internal/history"
)

// Store reads and writes the snapshot file. Loading is defensive: a
// missing or corrupt file degrades to an empty snapshot, and malformed
// entries are skipped individually instead of aborting the whole load.
type Store struct {
	path   string
	loc    *time.Location
	logger zerolog.Logger
}

// NewStore wires a snapshot file path into a Store.
func NewStore(path string, loc *time.Location, logger zerolog.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		path:   path,
		loc:    loc,
		logger: logger.With().Str("component", "state_store").Logger(),
	}
}

type fileSnapshot struct {
	History []json.RawMessage          `json:"history"`
	Chats   map[string]json.RawMessage `json:"chats"`
}

// Load reads the snapshot file. It never fails: state loss is acceptable
// degradation, never a startup failure.
func (s *Store) Load() *Snapshot {
	snap := NewSnapshot(s.loc)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("state file unreadable, starting empty")
		}
		return snap
	}

	var file fileSnapshot
	if err := json.Unmarshal(raw, &file); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("state file malformed, starting empty")
		return snap
	}

	skipped := 0
	for _, entry := range file.History {
		point, ok := s.decodeHistoryEntry(entry)
		if !ok {
			skipped++
			continue
		}
		snap.History.Append(point)
	}
	if skipped > 0 {
		s.logger.Warn().Int("skipped", skipped).Msg("dropped malformed history entries from state file")
	}

	for key, payload := range file.Chats {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn().Str("chat", key).Msg("dropped chat entry with non-numeric id")
			continue
		}
		var refs ChatRefs
		if err := json.Unmarshal(payload, &refs); err != nil {
			s.logger.Warn().Str("chat", key).Msg("dropped malformed chat entry")
			continue
		}
		snap.Chats[chatID] = &refs
	}

	return snap
}

func (s *Store) decodeHistoryEntry(entry json.RawMessage) (history.Point, bool) {
	var pair []json.RawMessage
	if err := json.Unmarshal(entry, &pair); err != nil || len(pair) != 2 {
		return history.Point{}, false
	}

	var tsRaw string
	if err := json.Unmarshal(pair[0], &tsRaw); err != nil {
		return history.Point{}, false
	}
	ts, err := parseTimestamp(tsRaw, s.loc)
	if err != nil {
		return history.Point{}, false
	}

	var value float64
	if err := json.Unmarshal(pair[1], &value); err != nil {
		return history.Point{}, false
	}

	point, err := history.NewPoint(ts, value)
	if err != nil {
		return history.Point{}, false
	}
	return point, true
}

// parseTimestamp accepts RFC 3339 timestamps; offset-less values are
// interpreted in the canonical zone.
func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("state: unparseable timestamp %q", raw)
}

// Save serialises the snapshot, writing to a temp file in the target
// directory and renaming it over the previous one so a crash mid-write
// cannot corrupt the last good state.
func (s *Store) Save(snap *Snapshot) error {
	historyOut := make([][2]any, 0, snap.History.Len())
	for _, p := range snap.History.Points() {
		historyOut = append(historyOut, [2]any{p.Timestamp.Format(time.RFC3339Nano), p.Value})
	}

	chatsOut := make(map[string]*ChatRefs, len(snap.Chats))
	for chatID, refs := range snap.Chats {
		chatsOut[strconv.FormatInt(chatID, 10)] = refs
	}

	payload, err := json.MarshalIndent(map[string]any{
		"history": historyOut,
		"chats":   chatsOut,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}
