package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// OtelCollectorConfig represents the parts of an OpenTelemetry Collector
// config needed to find where traces are written to disk.
type OtelCollectorConfig struct {
	Exporters map[string]FileExporter `yaml:"exporters"`
	Service   struct {
		Pipelines map[string]Pipeline `yaml:"pipelines"`
	} `yaml:"service"`
}

// FileExporter represents a file exporter configuration.
type FileExporter struct {
	Path string `yaml:"path"`
}

// Pipeline lists the exporters of one collector pipeline.
type Pipeline struct {
	Exporters []string `yaml:"exporters"`
}

// ParseOtelConfig reads an OpenTelemetry Collector config file and returns the
// paths written by "file" exporters that a traces pipeline uses. When the
// config declares no pipelines, every file exporter path is returned.
func ParseOtelConfig(configPath string) ([]string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read otel config: %w", err)
	}
	return parseOtelConfig(data)
}

func parseOtelConfig(data []byte) ([]string, error) {
	var config OtelCollectorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse otel config: %w", err)
	}

	var used map[string]bool
	if len(config.Service.Pipelines) > 0 {
		used = make(map[string]bool)
		for name, p := range config.Service.Pipelines {
			// traces and traces/<name> pipelines
			if name != "traces" && !strings.HasPrefix(name, "traces/") {
				continue
			}
			for _, e := range p.Exporters {
				used[e] = true
			}
		}
	}

	var paths []string
	for name, exporter := range config.Exporters {
		if name != "file" && !strings.HasPrefix(name, "file/") || exporter.Path == "" {
			continue
		}
		if used != nil && !used[name] {
			continue
		}
		if !slices.Contains(paths, exporter.Path) {
			paths = append(paths, exporter.Path)
		}
	}
	slices.Sort(paths)

	return paths, nil
}
