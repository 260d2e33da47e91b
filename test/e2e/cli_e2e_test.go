package e2e

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TestCLI_E2E verifies the built binary functions correctly
func TestCLI_E2E(t *testing.T) {
	tmpDir := t.TempDir()
	binName := "lodestone"
	if runtime.GOOS == "windows" {
		binName = "lodestone.exe"
	}
	binPath := filepath.Join(tmpDir, binName)

	// go test runs in the package directory; build from the module root.
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/lodestone")
	cmd.Dir = "../.."
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("Failed to build lodestone: %v", err)
	}

	workDir := t.TempDir()
	tests := []struct {
		name     string
		args     []string
		stdin    string
		wantOut  string // substring match (case-insensitive)
		wantCode int
	}{
		{
			name:     "Version Flag",
			args:     []string{"--version"},
			wantOut:  "lodestone",
			wantCode: 0,
		},
		{
			name:     "Version Wins Over Bad Flags",
			args:     []string{"--bogus", "--version"},
			wantOut:  "lodestone",
			wantCode: 0,
		},
		{
			name:     "Help",
			args:     []string{"--help"},
			wantOut:  "usage",
			wantCode: 0,
		},
		{
			name:     "Unknown Flag",
			args:     []string{"--bogus"},
			wantOut:  "flag provided but not defined",
			wantCode: 4,
		},
		{
			name:     "Invalid Config",
			args:     []string{"--log-level", "loud"},
			wantOut:  "unknown log level",
			wantCode: 4,
		},
		{
			name:     "Completion",
			args:     []string{"--completion", "bash"},
			wantOut:  "complete -F _lodestone_completions lodestone",
			wantCode: 0,
		},
		{
			name:     "REPL Session",
			args:     []string{"--servers-dir", filepath.Join(workDir, "Servers"), "--backups-dir", filepath.Join(workDir, "Backups")},
			stdin:    "help\nlist\nexit\n",
			wantOut:  "Goodbye!",
			wantCode: 0,
		},
		{
			name:     "REPL Unknown Command",
			args:     []string{"--servers-dir", filepath.Join(workDir, "Servers")},
			stdin:    "restar\n",
			wantOut:  "Did you mean restart?",
			wantCode: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(binPath, tt.args...)
			cmd.Dir = workDir
			cmd.Env = append(os.Environ(), "NO_COLOR=1")
			cmd.Stdin = strings.NewReader(tt.stdin)
			output, err := cmd.CombinedOutput()
			outStr := string(output)

			code := 0
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else if err != nil {
				t.Fatalf("Command failed to run: %v", err)
			}
			if code != tt.wantCode {
				t.Errorf("Exit code = %d, want %d\nOutput: %s", code, tt.wantCode, outStr)
			}

			if !strings.Contains(strings.ToLower(outStr), strings.ToLower(tt.wantOut)) {
				t.Errorf("Output missing expected string.\nExpected: %q\nGot:\n%s", tt.wantOut, outStr)
			}
		})
	}
}
