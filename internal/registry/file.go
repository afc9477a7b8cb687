package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// FileStore keeps connections in a JSON file. Every read goes to disk so
// edits made by other processes are seen immediately.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type fileState struct {
	Connections []ConnectedCalendar `json:"connections"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) GetConnectedCalendars(ctx context.Context, accountAddress string, opts ListOptions) ([]ConnectedCalendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState()
	if err != nil {
		return nil, err
	}
	var out []ConnectedCalendar
	for _, c := range state.Connections {
		if !strings.EqualFold(c.AccountAddress, accountAddress) {
			continue
		}
		if opts.ActiveOnly && c.Disabled {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveConnectedCalendar inserts or replaces the connection keyed by account,
// provider and email.
func (s *FileStore) SaveConnectedCalendar(ctx context.Context, cal ConnectedCalendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState()
	if err != nil {
		return err
	}
	cal = normalize(cal)
	cal.UpdatedAt = s.now().UTC()

	replaced := false
	for i, c := range state.Connections {
		if c.AccountAddress == cal.AccountAddress && c.Provider == cal.Provider && c.Email == cal.Email {
			state.Connections[i] = cal
			replaced = true
			break
		}
	}
	if !replaced {
		state.Connections = append(state.Connections, cal)
	}
	return s.saveState(state)
}

// loadState loads the registry from the JSON file. A missing file is an
// empty registry.
func (s *FileStore) loadState() (*fileState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &fileState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", s.path, err)
	}
	return &state, nil
}

// saveState writes the registry. It holds credentials, so it is not
// world-readable.
func (s *FileStore) saveState(state *fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}
