package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestNewCredentials_JWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(exp),
	})

	creds, err := NewCredentials(token)
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}

	if creds.Subject != "user-42" {
		t.Errorf("Subject = %q, want %q", creds.Subject, "user-42")
	}
	if !creds.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", creds.ExpiresAt, exp)
	}
	if creds.Expired(time.Now()) {
		t.Error("token should not be expired yet")
	}
	if !creds.Expired(exp.Add(time.Second)) {
		t.Error("token should be expired after exp")
	}
}

func TestNewCredentials_Opaque(t *testing.T) {
	creds, err := NewCredentials("opaque-api-key")
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	if !creds.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", creds.ExpiresAt)
	}
	if creds.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("opaque token should never expire")
	}
}

func TestNewCredentials_Malformed(t *testing.T) {
	if _, err := NewCredentials("not.a.jwt"); err == nil {
		t.Error("expected error for malformed JWT")
	}
}

func TestHeaders(t *testing.T) {
	t.Run("bearer", func(t *testing.T) {
		creds := &Credentials{Token: "abc"}
		headers, err := creds.Headers()
		if err != nil {
			t.Fatalf("Headers failed: %v", err)
		}
		if headers["Authorization"] != "Bearer abc" {
			t.Errorf("Authorization = %q, want %q", headers["Authorization"], "Bearer abc")
		}
	})

	t.Run("nil credentials", func(t *testing.T) {
		var creds *Credentials
		headers, err := creds.Headers()
		if err != nil || headers != nil {
			t.Errorf("Headers() = %v, %v; want nil, nil", headers, err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		creds := &Credentials{Token: "abc", ExpiresAt: time.Now().Add(-time.Minute)}
		if _, err := creds.Headers(); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("err = %v, want ErrTokenExpired", err)
		}
	})
}

func TestLoadCredentials(t *testing.T) {
	t.Run("literal wins over file", func(t *testing.T) {
		creds, err := LoadCredentials("literal", "/does/not/exist")
		if err != nil {
			t.Fatalf("LoadCredentials failed: %v", err)
		}
		if creds.Token != "literal" {
			t.Errorf("Token = %q, want %q", creds.Token, "literal")
		}
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		if err := os.WriteFile(path, []byte("file-token\n"), 0600); err != nil {
			t.Fatalf("write token: %v", err)
		}
		creds, err := LoadCredentials("", path)
		if err != nil {
			t.Fatalf("LoadCredentials failed: %v", err)
		}
		if creds.Token != "file-token" {
			t.Errorf("Token = %q, want %q", creds.Token, "file-token")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadCredentials("", filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("expected error for missing token file")
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		creds, err := LoadCredentials("", "")
		if err != nil || creds != nil {
			t.Errorf("LoadCredentials() = %v, %v; want nil, nil", creds, err)
		}
	})
}
