package cli

import (
	"bytes"
	"path/filepath"
	"testing"
)

// testEnv is an isolated config and data directory pair for running
// commands in-process.
type testEnv struct {
	t         *testing.T
	configDir string
	dataDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, name := range []string{
		"SPELLBOOK_CONFIG_DIR", "SPELLBOOK_DATA_DIR", "SPELLBOOK_DB_NAME",
		"SPELLBOOK_LOG_LEVEL", "SPELLBOOK_LOG_FORMAT", "SPELLBOOK_BUSY_TIMEOUT_MS",
	} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	return &testEnv{
		t:         t,
		configDir: filepath.Join(dir, "config"),
		dataDir:   filepath.Join(dir, "data"),
	}
}

// cmdResult holds the result of one command execution.
type cmdResult struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

// run executes spellbook with the environment's directories.
func (e *testEnv) run(args ...string) cmdResult {
	e.t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...))

	err := root.ExecuteContext(e.t.Context())
	return cmdResult{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		exitCode: exitCode(err),
		err:      err,
	}
}

// mustRun executes spellbook and fails the test on a non-zero exit.
func (e *testEnv) mustRun(args ...string) cmdResult {
	e.t.Helper()
	res := e.run(args...)
	if res.exitCode != exitSuccess {
		e.t.Fatalf("spellbook %v failed with exit code %d: %v\nstdout: %s\nstderr: %s",
			args, res.exitCode, res.err, res.stdout, res.stderr)
	}
	return res
}
