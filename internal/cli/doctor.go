package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
)

// DoctorCommand returns the CLI command definition for the 'doctor' subcommand.
// This command runs diagnostic checks to verify flamezoom is properly configured.
func DoctorCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Diagnose common setup and configuration issues",
		Description: `Run checks to verify flamezoom is properly configured.

This command checks:
  - Binary location and permissions
  - flamezoom config files
  - OpenTelemetry Collector file exporters (when otel_config is set)
  - Web UI port availability
  - MCP configuration file (mcp_settings.json)
  - Optional dependencies (otel-cli)

Exit codes:
  0 - All critical checks passed
  1 - One or more issues found`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := effectiveConfig(cmd)
			return runDoctorWithUtils(cmd.Root().Writer, version, cfg, err, &realFsUtils{})
		},
	}
}

type checkResult struct {
	Name       string
	Status     string // "pass", "warn", "fail"
	Message    string
	Suggestion string
	IsCritical bool
}

type fsUtils interface {
	Executable() (string, error)
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	UserHomeDir() (string, error)
	Getwd() (string, error)
	LookPath(file string) (string, error)
	Listen(addr string) error
}

type realFsUtils struct{}

func (r *realFsUtils) Executable() (string, error)           { return os.Executable() }
func (r *realFsUtils) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (r *realFsUtils) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }
func (r *realFsUtils) UserHomeDir() (string, error)          { return os.UserHomeDir() }
func (r *realFsUtils) Getwd() (string, error)                { return os.Getwd() }
func (r *realFsUtils) LookPath(file string) (string, error)  { return exec.LookPath(file) }

// Listen reports whether addr can be bound right now.
func (r *realFsUtils) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return l.Close()
}

// doctor carries what every check may look at.
type doctor struct {
	utils     fsUtils
	config    *Config
	configErr error
}

func runDoctorWithUtils(w io.Writer, version string, cfg *Config, cfgErr error, utils fsUtils) error {
	fmt.Fprintf(w, "🔍 flamezoom doctor v%s\n\n", version)

	d := &doctor{utils: utils, config: cfg, configErr: cfgErr}
	checks := []func(d *doctor) checkResult{
		checkBinaryLocation,
		checkBinaryExecutable,
		checkConfig,
		checkOtelConfig,
		checkWebUIPort,
		checkMCPConfig,
		checkOtelCLI,
	}

	results := make([]checkResult, 0, len(checks))
	for _, check := range checks {
		result := check(d)
		results = append(results, result)
		printCheckResult(w, result)
	}

	fmt.Fprintln(w)
	summary := summarizeResults(results)
	printSummary(w, summary)

	if summary.FailCount > 0 {
		return fmt.Errorf("found %d issues that need attention", summary.FailCount)
	}

	return nil
}

func printCheckResult(w io.Writer, result checkResult) {
	var icon string
	switch result.Status {
	case "pass":
		icon = "✓"
	case "warn":
		icon = "⚠"
	case "fail":
		icon = "✗"
	}

	fmt.Fprintf(w, "%s %s\n", icon, result.Message)

	if result.Suggestion != "" {
		fmt.Fprintf(w, "  %s\n", result.Suggestion)
	}
}

type resultSummary struct {
	PassCount int
	WarnCount int
	FailCount int
}

func summarizeResults(results []checkResult) resultSummary {
	var summary resultSummary
	for _, r := range results {
		switch r.Status {
		case "pass":
			summary.PassCount++
		case "warn":
			summary.WarnCount++
		case "fail":
			summary.FailCount++
		}
	}
	return summary
}

func printSummary(w io.Writer, summary resultSummary) {
	if summary.FailCount > 0 {
		fmt.Fprintf(w, "❌ Found %d issue(s) that need attention\n", summary.FailCount)
		if summary.WarnCount > 0 {
			fmt.Fprintf(w, "⚠️  %d warning(s)\n", summary.WarnCount)
		}
	} else if summary.WarnCount > 0 {
		fmt.Fprintf(w, "✅ All critical checks passed!\n")
		fmt.Fprintf(w, "⚠️  %d optional warning(s)\n", summary.WarnCount)
		fmt.Fprintf(w, "💡 Run 'flamezoom serve --verbose' to start the server\n")
	} else {
		fmt.Fprintf(w, "✅ All checks passed!\n")
		fmt.Fprintf(w, "💡 Run 'flamezoom serve --verbose' to start the server\n")
	}
}

// Binary location
func checkBinaryLocation(d *doctor) checkResult {
	executable, err := d.utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_location",
			Status:     "fail",
			Message:    "Could not determine binary location",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	absPath, err := filepath.Abs(executable)
	if err != nil {
		absPath = executable
	}

	return checkResult{
		Name:       "binary_location",
		Status:     "pass",
		Message:    fmt.Sprintf("Binary location: %s", absPath),
		IsCritical: false,
	}
}

// Binary executable
func checkBinaryExecutable(d *doctor) checkResult {
	executable, err := d.utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not check if binary is executable",
			IsCritical: true,
		}
	}

	info, err := d.utils.Stat(executable)
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not stat binary",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	// Ensure info is not nil before calling Mode()
	if info == nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary info is nil after stat",
			IsCritical: true,
		}
	}

	mode := info.Mode()
	if mode&0111 == 0 {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary is not executable",
			Suggestion: fmt.Sprintf("Run: chmod +x %s", executable),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:       "binary_executable",
		Status:     "pass",
		Message:    "Binary is executable",
		IsCritical: false,
	}
}

// flamezoom config files
func checkConfig(d *doctor) checkResult {
	if d.configErr != nil {
		return checkResult{
			Name:       "config",
			Status:     "fail",
			Message:    "flamezoom config is invalid",
			Suggestion: fmt.Sprintf("Error: %v", d.configErr),
			IsCritical: true,
		}
	}

	sources := []string{}
	if p := GlobalConfigPath(); p != "" {
		if _, err := d.utils.Stat(p); err == nil {
			sources = append(sources, p)
		}
	}
	if cwd, err := d.utils.Getwd(); err == nil {
		if p, err := findProjectConfigFrom(cwd, d.utils.Stat); err == nil {
			sources = append(sources, p)
		}
	}
	if len(sources) == 0 {
		return checkResult{
			Name:    "config",
			Status:  "pass",
			Message: fmt.Sprintf("Config: built-in defaults (full width %d, %d columns)", d.config.FullWidth, d.config.Columns),
		}
	}
	return checkResult{
		Name:    "config",
		Status:  "pass",
		Message: fmt.Sprintf("Config: %s (full width %d, %d columns)", strings.Join(sources, ", "), d.config.FullWidth, d.config.Columns),
	}
}

// Collector file exporters
func checkOtelConfig(d *doctor) checkResult {
	if d.config == nil || d.config.OtelConfig == "" {
		return checkResult{
			Name:    "otel_config",
			Status:  "pass",
			Message: "Collector config: not set, traces arrive over OTLP gRPC only",
		}
	}

	data, err := d.utils.ReadFile(d.config.OtelConfig)
	if err != nil {
		return checkResult{
			Name:       "otel_config",
			Status:     "fail",
			Message:    "Could not read collector config",
			Suggestion: fmt.Sprintf("Error reading %s: %v", d.config.OtelConfig, err),
			IsCritical: true,
		}
	}
	paths, err := parseOtelConfig(data)
	if err != nil {
		return checkResult{
			Name:       "otel_config",
			Status:     "fail",
			Message:    "Collector config is not valid YAML",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}
	if len(paths) == 0 {
		return checkResult{
			Name:       "otel_config",
			Status:     "warn",
			Message:    fmt.Sprintf("Collector config %s has no file exporter in a traces pipeline", d.config.OtelConfig),
			Suggestion: "Add a 'file' exporter with a path and list it under service.pipelines.traces.exporters",
		}
	}
	return checkResult{
		Name:    "otel_config",
		Status:  "pass",
		Message: fmt.Sprintf("Collector traces files: %s", strings.Join(paths, ", ")),
	}
}

// Web UI port
func checkWebUIPort(d *doctor) checkResult {
	if d.config == nil || d.config.WebUIPort == 0 {
		return checkResult{
			Name:    "webui_port",
			Status:  "pass",
			Message: "Web UI: disabled",
		}
	}

	addr := net.JoinHostPort(d.config.WebUIHost, strconv.Itoa(d.config.WebUIPort))
	if err := d.utils.Listen(addr); err != nil {
		suggestion := fmt.Sprintf("Error: %v\n  Pick another port with --webui-port or \"webui_port\" in the config", err)
		if errors.Is(err, syscall.EADDRINUSE) {
			suggestion = "Another process (perhaps a running flamezoom serve) holds the port.\n  Pick another port with --webui-port or \"webui_port\" in the config"
		}
		return checkResult{
			Name:       "webui_port",
			Status:     "warn",
			Message:    fmt.Sprintf("Web UI port %s is not available", addr),
			Suggestion: suggestion,
		}
	}
	return checkResult{
		Name:    "webui_port",
		Status:  "pass",
		Message: fmt.Sprintf("Web UI port %s is available", addr),
	}
}

// MCP configuration
func checkMCPConfig(d *doctor) checkResult {
	utils := d.utils
	configPath := getMCPConfigPath(utils)
	allPaths := getMCPConfigPaths(utils)

	// Check if file exists
	if _, err := utils.Stat(configPath); os.IsNotExist(err) {
		executable, _ := utils.Executable()
		absPath, _ := filepath.Abs(executable)

		// Build list of possible locations for the suggestion
		locationsList := ""
		for _, p := range allPaths {
			locationsList += fmt.Sprintf("  - %s\n", p)
		}

		suggestion := fmt.Sprintf(`MCP config not found. Checked:
%s
  For Claude Code, create at: %s
  For other MCP agents, use their config location

  Example config:
  {
    "mcpServers": {
      "flamezoom": {
        "command": "%s",
        "args": ["serve"]
      }
    }
  }`, locationsList, allPaths[0], absPath)

		return checkResult{
			Name:       "mcp_config",
			Status:     "fail",
			Message:    "MCP config not found",
			Suggestion: suggestion,
			IsCritical: true,
		}
	}

	// Try to parse the JSON
	data, err := utils.ReadFile(configPath)
	if err != nil {
		return checkResult{
			Name:       "mcp_config",
			Status:     "fail",
			Message:    "Could not read MCP config",
			Suggestion: fmt.Sprintf("Error reading %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return checkResult{
			Name:       "mcp_config",
			Status:     "fail",
			Message:    "MCP config is not valid JSON",
			Suggestion: fmt.Sprintf("Error parsing %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	// Detect which agent by config path
	agentName := "MCP agent"
	if strings.Contains(configPath, "claude-code") || strings.Contains(configPath, ".claude") {
		agentName = "Claude Code"
	} else if strings.Contains(configPath, ".gemini") {
		agentName = "Gemini CLI"
	}

	// Check for flamezoom entry
	mcpServers, ok := config["mcpServers"].(map[string]any)
	if !ok {
		return checkResult{
			Name:       "mcp_config",
			Status:     "warn",
			Message:    fmt.Sprintf("%s config found: %s", agentName, configPath),
			Suggestion: "Config does not contain 'mcpServers' section",
			IsCritical: false,
		}
	}

	entry, ok := mcpServers["flamezoom"].(map[string]any)
	if !ok {
		return checkResult{
			Name:       "mcp_config",
			Status:     "warn",
			Message:    fmt.Sprintf("%s config found: %s", agentName, configPath),
			Suggestion: "Config does not contain 'flamezoom' server entry - add flamezoom to use this tool",
			IsCritical: false,
		}
	}

	// Check if command path matches current binary
	configuredCommand, _ := entry["command"].(string)
	executable, _ := utils.Executable()
	absExecutable, _ := filepath.Abs(executable)

	if configuredCommand != "" && configuredCommand != absExecutable {
		return checkResult{
			Name:    "mcp_config",
			Status:  "warn",
			Message: fmt.Sprintf("MCP config found: %s", configPath),
			Suggestion: fmt.Sprintf("Config path (%s) differs from current binary (%s)\n  Update config to use current binary if needed",
				configuredCommand, absExecutable),
			IsCritical: false,
		}
	}

	return checkResult{
		Name:       "mcp_config",
		Status:     "pass",
		Message:    fmt.Sprintf("%s config found: %s", agentName, configPath),
		IsCritical: false,
	}
}

// otel-cli availability
func checkOtelCLI(d *doctor) checkResult {
	// Try to find otel-cli in PATH
	path, err := d.utils.LookPath("otel-cli")
	if err == nil {
		return checkResult{
			Name:    "otel_cli",
			Status:  "pass",
			Message: fmt.Sprintf("Optional: otel-cli found at %s", path),
		}
	}

	return checkResult{
		Name:    "otel_cli",
		Status:  "warn",
		Message: "Optional: otel-cli not found",
		Suggestion: `otel-cli is useful for testing but not required.
  Install with: go install github.com/tobert/otel-cli@latest`,
		IsCritical: false,
	}
}

// getMCPConfigPaths returns possible MCP config file paths for various agents
func getMCPConfigPaths(utils fsUtils) []string {
	homeDir, err := utils.UserHomeDir()
	if err != nil {
		return nil
	}

	cwd, _ := utils.Getwd()

	var paths []string

	// Check project-level configs first (more specific)
	if cwd != "" {
		paths = append(paths,
			filepath.Join(cwd, ".gemini", "settings.json"), // Gemini CLI (per-project)
			filepath.Join(cwd, ".claude", "settings.json"), // Claude (if per-project exists)
		)
	}

	// Then check global configs
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		paths = append(paths, filepath.Join(appData, "Claude Code", "mcp_settings.json"))
	case "darwin":
		paths = append(paths, filepath.Join(homeDir, ".config", "claude-code", "mcp_settings.json"))
	default: // linux and others
		paths = append(paths, filepath.Join(homeDir, ".config", "claude-code", "mcp_settings.json"))
	}

	return paths
}

// getMCPConfigPath returns the first existing MCP config file path
func getMCPConfigPath(utils fsUtils) string {
	paths := getMCPConfigPaths(utils)
	for _, path := range paths {
		if _, err := utils.Stat(path); err == nil {
			return path
		}
	}
	// Return first path as default for error messages
	if len(paths) > 0 {
		return paths[0]
	}
	return ""
}
