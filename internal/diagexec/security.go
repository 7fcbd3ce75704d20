package diagexec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// AllowedBinaryPaths are the directories quiesce will resolve a diagnostic
// tool binary from, matching melisai's executor.AllowedBinaryPaths but
// trimmed to where blktrace/sysstat/bpftrace actually install.
var AllowedBinaryPaths = []string{
	"/usr/sbin",
	"/usr/bin",
	"/usr/local/bin",
	"/usr/local/sbin",
	"/sbin",
	"/bin",
}

// SecurityChecker verifies binary integrity and sanitizes the subprocess
// environment before quiesce ever shells out to blktrace/iostat/biolatency,
// adapted verbatim in shape from melisai's executor.SecurityChecker.
type SecurityChecker struct {
	allowedPaths []string
}

// NewSecurityChecker creates a SecurityChecker with the default allowed
// paths.
func NewSecurityChecker() *SecurityChecker {
	return &SecurityChecker{allowedPaths: AllowedBinaryPaths}
}

// ResolveBinary finds tool's binary in an allowed directory.
func (sc *SecurityChecker) ResolveBinary(tool string) (string, error) {
	for _, dir := range sc.allowedPaths {
		path := filepath.Join(dir, tool)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("tool %q not found in allowed paths: %v", tool, sc.allowedPaths)
}

// VerifyBinary checks that a resolved binary meets quiesce's security
// requirements: lives in an allowed directory, is owned by root, and is not
// world-writable.
func (sc *SecurityChecker) VerifyBinary(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(absPath)
	allowed := false
	for _, allowedDir := range sc.allowedPaths {
		if dir == allowedDir {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("binary %q is not in an allowed directory", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", absPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", absPath)
	}

	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if stat.Uid != 0 {
			return fmt.Errorf("binary %q is not owned by root (uid=%d)", absPath, stat.Uid)
		}
	}

	if perm := info.Mode().Perm(); perm&0002 != 0 {
		return fmt.Errorf("binary %q is world-writable (mode=%s)", absPath, info.Mode())
	}

	return nil
}

// SanitizeEnv builds a minimal, safe subprocess environment, preventing
// environment injection through a trusted-looking tool name.
func (sc *SecurityChecker) SanitizeEnv() []string {
	safeVars := map[string]bool{
		"PATH":   true,
		"HOME":   true,
		"LANG":   true,
		"LC_ALL": true,
		"TERM":   true,
		"TMPDIR": true,
	}

	var env []string
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 && safeVars[parts[0]] {
			env = append(env, e)
		}
	}

	hasPath := false
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			hasPath = true
			break
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}

	return env
}
