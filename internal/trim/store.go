package trim

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/trimplayer/internal/logging"
	"github.com/kikiluvv/trimplayer/pkg/util"
)

// KeyPrefix is prepended to the video id to form the store key
const KeyPrefix = "trim-"

// Store persists trim ranges keyed by video id. Entries are never deleted.
type Store interface {
	// Load returns the stored range for videoID. Missing or malformed entries
	// report ok == false.
	Load(videoID string) (r Range, ok bool)
	// Save overwrites the stored range for videoID.
	Save(videoID string, r Range) error
}

// Key returns the store key for a video id
func Key(videoID string) string {
	return KeyPrefix + videoID
}

// Encode serializes a range in the persisted {start, end?} form
func Encode(r Range) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode trim: %w", err)
	}
	return string(data), nil
}

// Decode parses a persisted range. Empty, malformed or invariant-violating values
// are rejected.
func Decode(value string) (Range, error) {
	if value == "" {
		return Range{}, fmt.Errorf("empty trim value")
	}
	var r Range
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return Range{}, fmt.Errorf("decode trim: %w", err)
	}
	if err := r.Validate(0); err != nil {
		return Range{}, err
	}
	return r, nil
}

// FileStore keeps every key in a single JSON object on disk. Writes replace the file
// atomically; concurrent writers to the same key are last-write-wins.
type FileStore struct {
	logger zerolog.Logger
	path   string

	mu      sync.Mutex
	entries map[string]string
}

// OpenFileStore loads the store at path. A missing file is an empty store; an
// unreadable or corrupt file is logged and treated as empty so playback still works.
func OpenFileStore(logger zerolog.Logger, path string) (*FileStore, error) {
	s := &FileStore{
		logger:  logging.Component(logger, "trim-store"),
		path:    path,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read trim store: %w", err)
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("trim store is corrupt, starting empty")
		s.entries = make(map[string]string)
	}
	return s, nil
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store
func (s *FileStore) Load(videoID string) (Range, bool) {
	s.mu.Lock()
	value, ok := s.entries[Key(videoID)]
	s.mu.Unlock()
	if !ok {
		return Range{}, false
	}

	r, err := Decode(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("video_id", videoID).Msg("ignoring malformed trim")
		return Range{}, false
	}
	return r, true
}

// Save implements Store
func (s *FileStore) Save(videoID string, r Range) error {
	value, err := Encode(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[Key(videoID)] = value
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trim store: %w", err)
	}
	if err := util.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("write trim store: %w", err)
	}
	return nil
}

// Entries returns a copy of all stored ranges keyed by video id, skipping malformed ones
func (s *FileStore) Entries() map[string]Range {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Range, len(s.entries))
	for key, value := range s.entries {
		id, ok := strings.CutPrefix(key, KeyPrefix)
		if !ok || id == "" {
			continue
		}
		r, err := Decode(value)
		if err != nil {
			continue
		}
		out[id] = r
	}
	return out
}

// PreferencesStore persists ranges in the Fyne application preferences, the desktop
// counterpart of browser local storage.
type PreferencesStore struct {
	logger zerolog.Logger
	prefs  fyne.Preferences
}

// NewPreferencesStore wraps app preferences
func NewPreferencesStore(logger zerolog.Logger, prefs fyne.Preferences) *PreferencesStore {
	return &PreferencesStore{
		logger: logging.Component(logger, "trim-store"),
		prefs:  prefs,
	}
}

// Load implements Store
func (s *PreferencesStore) Load(videoID string) (Range, bool) {
	value := s.prefs.String(Key(videoID))
	if value == "" {
		return Range{}, false
	}
	r, err := Decode(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("video_id", videoID).Msg("ignoring malformed trim")
		return Range{}, false
	}
	return r, true
}

// Save implements Store
func (s *PreferencesStore) Save(videoID string, r Range) error {
	value, err := Encode(r)
	if err != nil {
		return err
	}
	s.prefs.SetString(Key(videoID), value)
	return nil
}
