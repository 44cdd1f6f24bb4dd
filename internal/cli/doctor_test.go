package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFsUtils struct {
	executable    string
	executableErr error
	statMap       map[string]os.FileInfo
	statErr       error
	readFileMap   map[string][]byte
	readFileErr   error
	homeDir       string
	homeDirErr    error
	cwd           string
	cwdErr        error
	lookPathMap   map[string]string
	lookPathErr   error
	listenErr     error
}

func (m *mockFsUtils) Executable() (string, error) { return m.executable, m.executableErr }
func (m *mockFsUtils) Stat(name string) (os.FileInfo, error) {
	if info, ok := m.statMap[name]; ok {
		return info, nil
	}
	return nil, m.statErr
}
func (m *mockFsUtils) ReadFile(name string) ([]byte, error) {
	if content, ok := m.readFileMap[name]; ok {
		return content, nil
	}
	return nil, m.readFileErr
}
func (m *mockFsUtils) UserHomeDir() (string, error) { return m.homeDir, m.homeDirErr }
func (m *mockFsUtils) Getwd() (string, error)       { return m.cwd, m.cwdErr }
func (m *mockFsUtils) LookPath(file string) (string, error) {
	if path, ok := m.lookPathMap[file]; ok {
		return path, nil
	}
	return "", m.lookPathErr
}
func (m *mockFsUtils) Listen(addr string) error { return m.listenErr }

func TestDoctorCommand(t *testing.T) {
	// No MCP config file, otel-cli not found: MCP config fails, otel-cli warns
	mockUtils1 := &mockFsUtils{
		executable: "/usr/local/bin/flamezoom",
		homeDir:    "/home/testuser",
		cwd:        "/home/testuser/project",
		statMap: map[string]os.FileInfo{
			"/usr/local/bin/flamezoom": &mockFileInfo{mode: 0755},
		},
		statErr:     os.ErrNotExist,
		readFileErr: os.ErrNotExist,
		lookPathErr: os.ErrNotExist,
	}

	var buf bytes.Buffer
	err := runDoctorWithUtils(&buf, "test-version", DefaultConfig(), nil, mockUtils1)
	out := buf.String()

	assert.Error(t, err)
	assert.Contains(t, out, "🔍 flamezoom doctor vtest-version")
	assert.Contains(t, out, "✓ Config:")
	assert.Contains(t, out, "✓ Collector config: not set")
	assert.Contains(t, out, "✓ Web UI port 127.0.0.1:4381 is available")
	assert.Contains(t, out, "✗ MCP config not found")
	assert.Contains(t, out, `"flamezoom": {`)
	assert.Contains(t, out, "⚠ Optional: otel-cli not found")
	assert.Contains(t, out, "❌ Found 1 issue(s) that need attention")

	// .gemini/settings.json exists, otel-cli found: everything passes
	buf.Reset()

	geminiConfigContent := []byte(`{
		"mcpServers": {
			"flamezoom": {
				"command": "/usr/local/bin/flamezoom",
				"args": ["serve"]
			}
		}
	}`)

	mockUtils2 := &mockFsUtils{
		executable: "/usr/local/bin/flamezoom",
		homeDir:    "/home/testuser",
		cwd:        "/home/testuser/project",
		statMap: map[string]os.FileInfo{
			filepath.Join("/home/testuser/project", ".gemini", "settings.json"): &mockFileInfo{mode: 0644},
			"/usr/local/bin/flamezoom": &mockFileInfo{mode: 0755},
		},
		readFileMap: map[string][]byte{
			filepath.Join("/home/testuser/project", ".gemini", "settings.json"): geminiConfigContent,
		},
		lookPathMap: map[string]string{
			"otel-cli": "/usr/local/bin/otel-cli",
		},
	}

	err = runDoctorWithUtils(&buf, "test-version", DefaultConfig(), nil, mockUtils2)
	out = buf.String()

	assert.NoError(t, err)
	assert.Contains(t, out, "✓ Gemini CLI config found: ")
	assert.Contains(t, out, "✓ Optional: otel-cli found at /usr/local/bin/otel-cli")
	assert.Contains(t, out, "✅ All checks passed!")
	assert.Contains(t, out, "flamezoom serve --verbose")
}

func TestDoctorInvalidConfig(t *testing.T) {
	utils := &mockFsUtils{
		executable: "/usr/local/bin/flamezoom",
		statMap: map[string]os.FileInfo{
			"/usr/local/bin/flamezoom": &mockFileInfo{mode: 0755},
		},
		statErr: os.ErrNotExist,
	}

	var buf bytes.Buffer
	err := runDoctorWithUtils(&buf, "dev", nil, ErrInvalidConfig, utils)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ flamezoom config is invalid")
	assert.Contains(t, buf.String(), "✓ Web UI: disabled")
}

func TestCheckOtelConfig(t *testing.T) {
	collector := []byte(`
exporters:
  file/traces:
    path: /var/otel/traces.jsonl
service:
  pipelines:
    traces:
      exporters: [file/traces]
`)

	tests := []struct {
		name    string
		files   map[string][]byte
		status  string
		message string
	}{
		{
			name:    "file exporter found",
			files:   map[string][]byte{"/etc/otel.yaml": collector},
			status:  "pass",
			message: "Collector traces files: /var/otel/traces.jsonl",
		},
		{
			name:    "no file exporters",
			files:   map[string][]byte{"/etc/otel.yaml": []byte("exporters:\n  debug: {}\n")},
			status:  "warn",
			message: "has no file exporter",
		},
		{
			name:    "bad yaml",
			files:   map[string][]byte{"/etc/otel.yaml": []byte("exporters: [")},
			status:  "fail",
			message: "not valid YAML",
		},
		{
			name:    "missing file",
			files:   nil,
			status:  "fail",
			message: "Could not read collector config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OtelConfig = "/etc/otel.yaml"
			d := &doctor{
				utils:  &mockFsUtils{readFileMap: tt.files, readFileErr: os.ErrNotExist},
				config: cfg,
			}

			result := checkOtelConfig(d)
			assert.Equal(t, tt.status, result.Status)
			assert.Contains(t, result.Message+result.Suggestion, tt.message)
		})
	}
}

func TestCheckWebUIPort(t *testing.T) {
	cfg := DefaultConfig()
	d := &doctor{
		utils:  &mockFsUtils{listenErr: syscall.EADDRINUSE},
		config: cfg,
	}

	result := checkWebUIPort(d)
	assert.Equal(t, "warn", result.Status)
	assert.Contains(t, result.Suggestion, "holds the port")

	d.utils = &mockFsUtils{listenErr: errors.New("permission denied")}
	result = checkWebUIPort(d)
	assert.Equal(t, "warn", result.Status)
	assert.Contains(t, result.Suggestion, "permission denied")
}

// mockFileInfo implements os.FileInfo for testing purposes
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
	sys     any
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.sys }
