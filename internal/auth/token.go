package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// expiryWarning is how close to expiry a token must be before it is logged.
const expiryWarning = 10 * time.Minute

// StaticToken is a fixed bearer token. The empty token sends requests unauthenticated.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token() string { return string(s) }

// FileToken reads the bearer token from a file and re-reads it when the file changes.
type FileToken struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	token   string
	modTime time.Time
}

// NewFileToken loads the token at path.
func NewFileToken(path string, logger *slog.Logger) (*FileToken, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("auth: empty token file path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &FileToken{path: path, logger: logger, now: time.Now}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("auth: stat token file: %w", err)
	}
	if err := f.load(info.ModTime()); err != nil {
		return nil, err
	}
	return f, nil
}

// Token returns the current token. Read failures keep the last good token.
func (f *FileToken) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := os.Stat(f.path)
	if err != nil {
		f.logger.Warn("token file unavailable", "path", f.path, "error", err)
		return f.token
	}
	if !info.ModTime().Equal(f.modTime) {
		if err := f.load(info.ModTime()); err != nil {
			f.logger.Warn("token file reload failed", "path", f.path, "error", err)
		}
	}
	return f.token
}

func (f *FileToken) load(modTime time.Time) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("auth: read token file: %w", err)
	}
	f.token = strings.TrimSpace(string(data))
	f.modTime = modTime
	CheckExpiry(f.logger, f.token, f.now())
	return nil
}

// CheckExpiry logs a warning when a JWT bearer token is expired or about to expire.
// The token is attached regardless; the monitoring API decides whether to accept it.
func CheckExpiry(logger *slog.Logger, token string, now time.Time) {
	if token == "" || logger == nil {
		return
	}
	info, err := Inspect(token)
	if err != nil {
		return
	}
	switch {
	case info.Expired(now):
		logger.Warn("api token expired", "subject", info.Subject, "expires_at", info.ExpiresAt)
	case info.ExpiresWithin(now, expiryWarning):
		logger.Warn("api token expires soon", "subject", info.Subject, "expires_at", info.ExpiresAt)
	}
}
