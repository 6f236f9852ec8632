package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("BANANAPICGEN_CONFIG_DIR", t.TempDir())
	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStore_SaveLoadDelete(t *testing.T) {
	store := newTestStore(t)

	creds := Credentials{APIKey: "AIzaSyTest1234567890", UserID: "alice"}
	if err := store.Save(creds); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != creds {
		t.Errorf("Load() = %+v, want %+v", loaded, creds)
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	loaded, err = store.Load()
	if err != nil {
		t.Fatalf("Load() after delete error = %v", err)
	}
	if loaded.APIKey != "" {
		t.Error("credentials should be empty after delete")
	}
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	store := newTestStore(t)

	creds, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds != (Credentials{}) {
		t.Errorf("Load() = %+v, want zero credentials", creds)
	}
}

func TestStore_DeleteMissing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Delete(); err == nil {
		t.Error("Delete() with no stored credentials should error")
	}
}

func TestStore_FilePermissions(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(Credentials{APIKey: "secret"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials file mode = %o, want 0600", perm)
	}
}

func TestStore_Path(t *testing.T) {
	store := newTestStore(t)
	if got := filepath.Base(store.Path()); got != "credentials.json" {
		t.Errorf("Path() basename = %q, want credentials.json", got)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", ""},
		{"short", "abc", "***"},
		{"exactly eight", "12345678", "********"},
		{"long", "AIzaSyTest1234567890", "AIza************7890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskKey(tt.key); got != tt.want {
				t.Errorf("MaskKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestVerifier_HasValidCredential(t *testing.T) {
	tests := []struct {
		name      string
		creds     *Credentials
		allowlist []string
		want      bool
	}{
		{"no credentials", nil, nil, false},
		{"key without allowlist", &Credentials{APIKey: "key"}, nil, true},
		{"key and allowed user", &Credentials{APIKey: "key", UserID: "alice"}, []string{"alice", "bob"}, true},
		{"key and unlisted user", &Credentials{APIKey: "key", UserID: "mallory"}, []string{"alice", "bob"}, false},
		{"empty key", &Credentials{UserID: "alice"}, []string{"alice"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			if tt.creds != nil {
				if err := store.Save(*tt.creds); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			}

			v := NewVerifier(store, tt.allowlist, nil)
			if got := v.HasValidCredential(); got != tt.want {
				t.Errorf("HasValidCredential() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifier_RequestCredential(t *testing.T) {
	store := newTestStore(t)
	var buf bytes.Buffer

	NewVerifier(store, nil, &buf).RequestCredential()
	if !strings.Contains(buf.String(), "keys set") {
		t.Errorf("RequestCredential() output = %q, want guidance mentioning 'keys set'", buf.String())
	}

	// Nil writer must not panic.
	NewVerifier(store, nil, nil).RequestCredential()
}

func TestAllowlist(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "alice", []string{"alice"}},
		{"multiple with spaces", "alice, bob ,carol", []string{"alice", "bob", "carol"}},
		{"trailing comma", "alice,", []string{"alice"}},
		{"only commas", ",,,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allowlist(tt.env)
			if len(got) != len(tt.want) {
				t.Fatalf("Allowlist(%q) = %v, want %v", tt.env, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Allowlist(%q)[%d] = %q, want %q", tt.env, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetAPIKey_Priority(t *testing.T) {
	t.Setenv("BANANAPICGEN_CONFIG_DIR", t.TempDir())
	t.Setenv("TEST_GEMINI_KEY", "")

	t.Run("explicit flag wins", func(t *testing.T) {
		t.Setenv("TEST_GEMINI_KEY", "env-key")
		key, source, err := GetAPIKey("flag-key", "TEST_GEMINI_KEY")
		if err != nil {
			t.Fatalf("GetAPIKey() error = %v", err)
		}
		if key != "flag-key" || !strings.Contains(source, "flag") {
			t.Errorf("GetAPIKey() = %q from %q, want flag key", key, source)
		}
	})

	t.Run("stored beats environment", func(t *testing.T) {
		t.Setenv("TEST_GEMINI_KEY", "env-key")
		store, err := NewStore()
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Save(Credentials{APIKey: "stored-key"}); err != nil {
			t.Fatal(err)
		}
		defer store.Delete()

		key, source, err := GetAPIKey("", "TEST_GEMINI_KEY")
		if err != nil {
			t.Fatalf("GetAPIKey() error = %v", err)
		}
		if key != "stored-key" || !strings.Contains(source, "stored") {
			t.Errorf("GetAPIKey() = %q from %q, want stored key", key, source)
		}
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv("TEST_GEMINI_KEY", "env-key")
		key, source, err := GetAPIKey("", "TEST_GEMINI_KEY")
		if err != nil {
			t.Fatalf("GetAPIKey() error = %v", err)
		}
		if key != "env-key" || !strings.Contains(source, "TEST_GEMINI_KEY") {
			t.Errorf("GetAPIKey() = %q from %q, want env key", key, source)
		}
	})

	t.Run("nothing available", func(t *testing.T) {
		if _, _, err := GetAPIKey("", "TEST_GEMINI_KEY"); err == nil {
			t.Error("GetAPIKey() with no sources should error")
		}
	})
}
