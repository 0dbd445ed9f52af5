package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Location kinds.
const (
	KindLocal    = "local"
	KindOneDrive = "onedrive"
)

const timestampLayout = "20060102T150405Z"

// Location says where a set of notes was written.
type Location struct {
	Kind string
	Path string
}

func (l Location) String() string { return l.Kind + ":" + l.Path }

// Record is the JSON document written for each save.
type Record struct {
	SessionID string            `json:"session_id"`
	Timestamp string            `json:"timestamp"`
	Notes     map[string]string `json:"notes"`
}

// OneDriveConfig enables the remote destination. Uploads are not performed;
// the remote path is reported so callers can surface it.
type OneDriveConfig struct {
	Enabled    bool
	Token      string
	BaseFolder string
}

// Store writes de-identified session notes. Remote destinations take
// precedence when configured; otherwise notes go to local JSON files.
type Store struct {
	dir      string
	onedrive OneDriveConfig
	now      func() time.Time
}

// NewStore creates the local notes directory if needed.
func NewStore(dir string, onedrive OneDriveConfig) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir %s: %w", dir, err)
	}
	if onedrive.BaseFolder == "" {
		onedrive.BaseFolder = "/MedicalDecisionSupport"
	}
	return &Store{dir: dir, onedrive: onedrive, now: time.Now}, nil
}

// Dir returns the local notes directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) remoteAvailable() bool {
	return s.onedrive.Enabled && s.onedrive.Token != ""
}

// Save stores notes for sessionID under a UTC timestamped file name.
func (s *Store) Save(sessionID string, notes map[string]string) (Location, error) {
	if sessionID == "" {
		return Location{}, errors.New("notes: session id is required")
	}
	ts := s.now().UTC().Format(timestampLayout)
	name := fileName(sessionID) + "_" + ts + ".json"
	if s.remoteAvailable() {
		return Location{Kind: KindOneDrive, Path: s.onedrive.BaseFolder + "/" + name}, nil
	}
	data, err := json.MarshalIndent(Record{SessionID: sessionID, Timestamp: ts, Notes: notes}, "", "  ")
	if err != nil {
		return Location{}, err
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Location{}, fmt.Errorf("write notes %s: %w", path, err)
	}
	return Location{Kind: KindLocal, Path: path}, nil
}

// Latest returns the most recent local notes for sessionID, or nil when none exist.
func (s *Store) Latest(sessionID string) (*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	prefix := fileName(sessionID) + "_"
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	data, err := os.ReadFile(filepath.Join(s.dir, names[0]))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode notes %s: %w", names[0], err)
	}
	return &rec, nil
}

// fileName keeps session ids from escaping the notes directory.
func fileName(sessionID string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(sessionID)
}
