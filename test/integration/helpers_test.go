package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func getProjectRoot() (string, error) {
	// Get current working directory and find project root
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Look for go.mod file to identify project root
	for dir := wd; dir != "/"; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
	}

	return wd, nil
}

func buildAuthChurnBinary(t *testing.T, projectRoot string) string {
	binaryPath := filepath.Join(t.TempDir(), "authchurn_test")

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/authchurn")
	cmd.Dir = projectRoot

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("Build output: %s", string(output))
		require.NoError(t, err, "Failed to build authchurn binary")
	}

	return binaryPath
}

func newCommand(binary, dir string, args ...string) *exec.Cmd {
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	return cmd
}

// runBinary runs the binary in dir and returns stdout and stderr separately.
func runBinary(t *testing.T, binary, dir string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newCommand(binary, dir, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func parseJSONLFile(t *testing.T, filePath string) []map[string]interface{} {
	file, err := os.Open(filePath)
	require.NoError(t, err)
	defer file.Close()

	var events []map[string]interface{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &event), "invalid JSON line: %s", line)
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}
