// Package envops prepares the host environment for a deployment: the
// persistent directories the container mounts and the .env file the compose
// manifest reads its secrets from.
package envops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/openclaw/openclaw-deploy/internal/config"
	"github.com/openclaw/openclaw-deploy/internal/constants"
	"github.com/openclaw/openclaw-deploy/internal/logging"
)

// Error marks host provisioning failures (directory creation, .env writes).
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// EnsureDirectories creates the gateway's persistent host directories and
// returns the paths it actually created, so the caller can register
// compensating removals for exactly those.
func EnsureDirectories(snap *config.Snapshot, logger *logging.Logger) ([]string, error) {
	dirs := []struct {
		path string
		mode os.FileMode
	}{
		{snap.ConfigDir, constants.ModeDirPrivate},
		{snap.WorkspaceDir, constants.ModeDirDefault},
	}

	var created []string
	for _, dir := range dirs {
		info, err := os.Stat(dir.path)
		if err == nil {
			if !info.IsDir() {
				return created, &Error{Msg: fmt.Sprintf("%s exists but is not a directory", dir.path)}
			}
			continue
		}
		if !os.IsNotExist(err) {
			return created, &Error{Msg: fmt.Sprintf("failed to inspect %s", dir.path), Err: err}
		}
		if err := os.MkdirAll(dir.path, dir.mode); err != nil {
			return created, &Error{Msg: fmt.Sprintf("failed to create %s", dir.path), Err: err}
		}
		logger.Debug(fmt.Sprintf("Created directory %s", dir.path))
		created = append(created, dir.path)
	}
	return created, nil
}

// RemoveIfEmpty deletes dir only when it holds no entries. Used by rollback
// so an unwound deployment never deletes user data that appeared meanwhile.
func RemoveIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(dir)
}

// EnsureEnvFile bootstraps .env from .env.example on first deploy. An
// existing .env is never touched, whatever its contents. Returns true when
// the file was created by this call.
func EnsureEnvFile(snap *config.Snapshot, logger *logging.Logger) (bool, error) {
	envPath := snap.EnvFilePath()
	if _, err := os.Stat(envPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, &Error{Msg: fmt.Sprintf("failed to inspect %s", envPath), Err: err}
	}

	example, err := os.ReadFile(snap.EnvExamplePath())
	if err != nil {
		return false, &Error{Msg: fmt.Sprintf("failed to read %s", constants.EnvExampleFileName), Err: err}
	}

	token, err := GenerateToken()
	if err != nil {
		return false, &Error{Msg: "failed to generate gateway token", Err: err}
	}

	content := injectToken(string(example), token)
	if err := os.WriteFile(envPath, []byte(content), constants.ModeFileSecret); err != nil {
		return false, &Error{Msg: fmt.Sprintf("failed to write %s", constants.EnvFileName), Err: err}
	}
	logger.Info(fmt.Sprintf("Created %s with a freshly generated gateway token", constants.EnvFileName))
	return true, nil
}

// GenerateToken returns a 64-character hex token from 32 bytes of randomness.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// injectToken fills the blank token assignment in the template, preserving
// every other line byte for byte. A template without a token line gets one
// appended.
func injectToken(template, token string) string {
	lines := strings.Split(template, "\n")
	prefix := constants.EnvVarGatewayToken + "="
	for i, line := range lines {
		if strings.TrimSpace(line) == prefix {
			lines[i] = prefix + token
			return strings.Join(lines, "\n")
		}
	}
	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + prefix + token + "\n"
}
