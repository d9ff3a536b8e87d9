//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.tutord.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "tutord")
	}
	return "tutord-data"
}

func apiKeyHint() string {
	return " or macOS Keychain (service: tutord, account: provider.api_key)"
}

// defaultsBackend stores config in the UserDefaults domain via defaults(1).
type defaultsBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &defaultsBackend{domain: defaultsDomain}
}

// run executes defaults(1). A missing key makes "read" and "delete" exit 1;
// that case is reported as found=false.
func (b *defaultsBackend) run(args ...string) (out string, found bool, err error) {
	full := append([]string{args[0], b.domain}, args[1:]...)
	raw, err := exec.Command("defaults", full...).CombinedOutput()
	out = strings.TrimSpace(string(raw))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && args[0] != "write" {
			return "", false, nil
		}
		return "", false, fmt.Errorf("defaults %s %s: %w (%s)", args[0], strings.Join(args[1:], " "), err, out)
	}
	return out, true, nil
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	return b.run("read", key)
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.run("read", key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *defaultsBackend) SetString(key, val string) error {
	_, _, err := b.run("write", key, "-string", val)
	return err
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	_, _, err := b.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (b *defaultsBackend) Delete(key string) error {
	_, _, err := b.run("delete", key)
	return err
}
