package auth

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mustToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestInspect(t *testing.T) {
	expires := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	info, err := Inspect(mustToken(t, "ops", expires))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Subject != "ops" || !info.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Expired(time.Now()) {
		t.Fatalf("token should not be expired")
	}
	if !info.Expired(expires.Add(time.Second)) {
		t.Fatalf("token should be expired after expiry")
	}
}

func TestInspectOpaqueToken(t *testing.T) {
	if _, err := Inspect("plain-api-key"); !errors.Is(err, ErrOpaqueToken) {
		t.Fatalf("expected opaque token error, got %v", err)
	}
	if _, err := Inspect(""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestCheckExpiryWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	now := time.Now()

	CheckExpiry(logger, mustToken(t, "ops", now.Add(-time.Minute)), now)
	if !strings.Contains(buf.String(), "api token expired") {
		t.Fatalf("expected expired warning, got %q", buf.String())
	}

	buf.Reset()
	CheckExpiry(logger, mustToken(t, "ops", now.Add(5*time.Minute)), now)
	if !strings.Contains(buf.String(), "expires soon") {
		t.Fatalf("expected expiring warning, got %q", buf.String())
	}

	buf.Reset()
	CheckExpiry(logger, mustToken(t, "ops", now.Add(time.Hour)), now)
	CheckExpiry(logger, "opaque", now)
	if buf.Len() != 0 {
		t.Fatalf("expected no warning, got %q", buf.String())
	}
}

func TestStaticToken(t *testing.T) {
	if StaticToken("abc").Token() != "abc" {
		t.Fatalf("unexpected static token")
	}
}

func TestFileTokenReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("first\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	source, err := NewFileToken(path, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("new file token: %v", err)
	}
	if got := source.Token(); got != "first" {
		t.Fatalf("expected first, got %q", got)
	}

	if err := os.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("rewrite token: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if got := source.Token(); got != "second" {
		t.Fatalf("expected second, got %q", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := source.Token(); got != "second" {
		t.Fatalf("expected last good token after removal, got %q", got)
	}
}

func TestNewFileTokenMissingFile(t *testing.T) {
	if _, err := NewFileToken(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
