package httpgw

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"ecotrack/internal/auth"
	"ecotrack/internal/logger"
)

type savedSession struct {
	Token     string         `json:"token"`
	Identity  *auth.Identity `json:"identity"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"`
}

// sessionFile stores one session as JSON, readable by the owner only.
// A nil *sessionFile stores nothing.
type sessionFile struct {
	path string
}

func (f *sessionFile) load() (*savedSession, error) {
	if f == nil {
		return nil, nil
	}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("httpgw: read session: %w", err)
	}
	var s savedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("httpgw: decode session: %w", err)
	}
	if s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

func (f *sessionFile) save(s *savedSession) error {
	if f == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("httpgw: encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("httpgw: create session dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("httpgw: write session: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("httpgw: replace session: %w", err)
	}
	return nil
}

func (f *sessionFile) remove() {
	if f == nil {
		return
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("could not remove session file", map[string]any{"error": err.Error()})
	}
}
