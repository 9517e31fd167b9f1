package auth

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCredentials_Apply(t *testing.T) {
	creds := NewCredentials("  abc123 \n")

	h := http.Header{}
	creds.Apply(h)

	if got := h.Get("Authorization"); got != "Bearer abc123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc123")
	}
	if !creds.Authenticated() {
		t.Error("Authenticated() = false, want true")
	}
}

func TestCredentials_Anonymous(t *testing.T) {
	creds := NewCredentials("")

	h := http.Header{}
	creds.Apply(h)

	if got := h.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want empty", got)
	}
	if len(creds.Headers()) != 0 {
		t.Errorf("Headers() = %v, want empty", creds.Headers())
	}

	var nilCreds *Credentials
	if nilCreds.Token() != "" || nilCreds.Authenticated() {
		t.Error("nil credentials should be anonymous")
	}
}

func TestCredentials_SetToken(t *testing.T) {
	creds := NewCredentials("")
	creds.SetToken("fresh", "alice")

	if creds.Token() != "fresh" {
		t.Errorf("Token() = %q, want fresh", creds.Token())
	}
	if creds.User() != "alice" {
		t.Errorf("User() = %q, want alice", creds.User())
	}
	if got := creds.Headers()["Authorization"]; got != "Bearer fresh" {
		t.Errorf("Headers()[Authorization] = %q", got)
	}
}

func TestCredentials_ConcurrentAccess(t *testing.T) {
	creds := NewCredentials("a")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			creds.SetToken("b", "")
		}()
		go func() {
			defer wg.Done()
			creds.Apply(http.Header{})
		}()
	}
	wg.Wait()
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	tok, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if tok != "file-token" {
		t.Errorf("token = %q, want file-token", tok)
	}
}

func TestLoadToken_Errors(t *testing.T) {
	if _, err := LoadToken("/nonexistent/token"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "empty")
	os.WriteFile(path, []byte("  \n"), 0600)
	if _, err := LoadToken(path); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	os.WriteFile(path, []byte("from-file"), 0600)

	tests := []struct {
		name    string
		token   string
		path    string
		want    string
		wantErr error
	}{
		{"inline wins", "inline", path, "inline", nil},
		{"file fallback", "", path, "from-file", nil},
		{"nothing configured", "", "", "", ErrNoToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := LoadCredentials(tt.token, tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadCredentials failed: %v", err)
			}
			if creds.Token() != tt.want {
				t.Errorf("Token() = %q, want %q", creds.Token(), tt.want)
			}
		})
	}
}
