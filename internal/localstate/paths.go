// Package localstate stores the doorbellctl login token under the user's
// home directory so repeated commands do not need --token.
package localstate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envHome   = "DOORBELLCTL_HOME" // override for tests
	dirName   = ".doorbellctl"     // default under $HOME
	tokenFile = "token"
)

// DataDir returns the directory where CLI state is stored (~/.doorbellctl),
// creating it with 0700 permissions if needed.
func DataDir() (string, error) {
	dir := os.Getenv(envHome)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// TokenPath returns the absolute path to the stored token file.
func TokenPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tokenFile), nil
}

// SaveToken persists the bearer token for later commands. The file is
// readable only by the current user.
func SaveToken(token string) error {
	path, err := TokenPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// LoadToken returns the stored bearer token, or "" when no login is saved.
func LoadToken() (string, error) {
	path, err := TokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ClearToken removes the stored token. Clearing an absent token is not an
// error.
func ClearToken() error {
	path, err := TokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
