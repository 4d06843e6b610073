package compute

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// StaticToken is a TokenProvider backed by a fixed credential from config.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// FileTokenSource reads the bearer token from a file, typically a mounted
// credential that an external process rotates. Refresh is invoked by a
// scheduled task owned by the caller; the source itself never spawns
// goroutines.
type FileTokenSource struct {
	path string

	mu    sync.RWMutex
	token string
}

// NewFileTokenSource loads the initial token from path.
func NewFileTokenSource(path string) (*FileTokenSource, error) {
	s := &FileTokenSource{path: path}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh re-reads the token file. On error the previously loaded token
// stays in effect.
func (s *FileTokenSource) Refresh() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("refresh token from %s: %w", s.path, err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return fmt.Errorf("refresh token from %s: file is empty", s.path)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *FileTokenSource) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", fmt.Errorf("no token loaded from %s", s.path)
	}
	return s.token, nil
}

var (
	_ TokenProvider = StaticToken("")
	_ TokenProvider = (*FileTokenSource)(nil)
)
