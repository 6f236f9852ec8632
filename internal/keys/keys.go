package keys

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Store handles Gemini credential storage and retrieval.
type Store struct {
	configDir string
}

// Credentials is the credentials.json structure.
type Credentials struct {
	APIKey string `json:"apiKey"`
	UserID string `json:"userId"`
}

// NewStore creates a credential store rooted at the platform config dir.
func NewStore() (*Store, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir}, nil
}

// getConfigDir returns the platform-specific config directory
func getConfigDir() (string, error) {
	// Allow override for testing
	if testDir := os.Getenv("BANANAPICGEN_CONFIG_DIR"); testDir != "" {
		return testDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "bananapicgen"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "bananapicgen"), nil
	default: // linux and others
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "bananapicgen"), nil
	}
}

// ConfigDir returns the directory holding credentials and local state.
func (s *Store) ConfigDir() string {
	return s.configDir
}

// Path returns the path to the credentials.json file
func (s *Store) Path() string {
	return filepath.Join(s.configDir, "credentials.json")
}

// Load reads the stored credentials. A missing file yields empty
// credentials, not an error.
func (s *Store) Load() (Credentials, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials.json: %w", err)
	}
	return creds, nil
}

// Save writes the credentials with owner-only permissions.
func (s *Store) Save(creds Credentials) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials.json: %w", err)
	}
	return nil
}

// Delete removes the stored credentials.
func (s *Store) Delete() error {
	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return fmt.Errorf("no stored credentials found")
	}
	return err
}

// MaskKey returns a masked version of the key for display
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Verifier implements the credential check: a key must be present and the
// user must pass the static allow-list membership check. An empty
// allow-list admits everyone.
type Verifier struct {
	store     *Store
	allowlist []string
	out       io.Writer
}

func NewVerifier(store *Store, allowlist []string, out io.Writer) *Verifier {
	return &Verifier{store: store, allowlist: allowlist, out: out}
}

func (v *Verifier) HasValidCredential() bool {
	creds, err := v.store.Load()
	if err != nil || creds.APIKey == "" {
		return false
	}
	if len(v.allowlist) == 0 {
		return true
	}
	return slices.Contains(v.allowlist, creds.UserID)
}

// RequestCredential points the user at the credential flow. There is no
// interactive selection in this environment, so this only prints guidance.
func (v *Verifier) RequestCredential() {
	if v.out == nil {
		return
	}
	fmt.Fprintln(v.out, "A valid API key is required: run 'bananapicgen keys set' or set GEMINI_API_KEY.")
}

// Allowlist parses a comma-separated allow-list from the environment.
func Allowlist(env string) []string {
	if env == "" {
		return nil
	}
	var users []string
	for _, u := range strings.Split(env, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return users
}

// GetAPIKey retrieves the API key using the priority order:
// 1. Explicit key passed as argument (if non-empty)
// 2. Stored credentials
// 3. Environment variable
func GetAPIKey(explicitKey, envVar string) (string, string, error) {
	if explicitKey != "" {
		return explicitKey, "command-line flag", nil
	}

	store, err := NewStore()
	if err == nil {
		creds, err := store.Load()
		if err == nil && creds.APIKey != "" {
			return creds.APIKey, "stored credentials", nil
		}
	}

	if envKey := os.Getenv(envVar); envKey != "" {
		return envKey, fmt.Sprintf("environment variable (%s)", envVar), nil
	}

	return "", "", fmt.Errorf("API key required: run 'bananapicgen keys set' or set %s environment variable", envVar)
}
