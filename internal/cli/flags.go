package cli

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v3"

	"github.com/tobert/flamezoom/internal/profile"
)

// RootFlags are shared by every subcommand.
func RootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a JSON config file (default: .flamezoom.json in the project, then ~/.config/flamezoom/config.json)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
		},
	}
}

func displayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "full-width",
			Usage: "Display budget the whole trace is scaled to (1-65535)",
		},
		&cli.IntFlag{
			Name:  "columns",
			Usage: "Terminal columns the display budget maps onto",
		},
		&cli.StringFlag{
			Name:  "color",
			Usage: "Paint flame boxes: auto, always or never",
		},
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "Seed for node colors (0 for random)",
		},
	}
}

// effectiveConfig loads the layered config files and applies any flags the
// user set explicitly on top.
func effectiveConfig(cmd *cli.Command) (*Config, error) {
	cfg, err := LoadEffectiveConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("verbose") {
		cfg.Verbose = cmd.Bool("verbose")
	}
	if cmd.IsSet("full-width") {
		cfg.FullWidth = int(cmd.Int("full-width"))
	}
	if cmd.IsSet("columns") {
		cfg.Columns = int(cmd.Int("columns"))
	}
	if cmd.IsSet("color") {
		cfg.Color = cmd.String("color")
	}
	if cmd.IsSet("seed") {
		cfg.Seed = cmd.Uint64("seed")
	}
	if cmd.IsSet("trace-buffer-size") {
		cfg.TraceBufferSize = int(cmd.Int("trace-buffer-size"))
	}
	if cmd.IsSet("otlp-host") {
		cfg.OTLPHost = cmd.String("otlp-host")
	}
	if cmd.IsSet("otlp-port") {
		cfg.OTLPPort = int(cmd.Int("otlp-port"))
	}
	if cmd.IsSet("webui-host") {
		cfg.WebUIHost = cmd.String("webui-host")
	}
	if cmd.IsSet("webui-port") {
		cfg.WebUIPort = int(cmd.Int("webui-port"))
	}
	if cmd.IsSet("transport") {
		cfg.Transport = cmd.String("transport")
	}
	if cmd.IsSet("otel-config") {
		cfg.OtelConfig = cmd.String("otel-config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// profileOptions seeds node colors from cfg.Seed, or randomly when it is 0.
func profileOptions(cfg *Config) []profile.Option {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if cfg.Verbose {
		log.Printf("🎨 Color seed: %d\n", seed)
	}
	return []profile.Option{profile.WithRand(rand.New(rand.NewPCG(seed, seed)))}
}

func fullWidth(cfg *Config) uint16 {
	// Validate keeps FullWidth within uint16.
	if cfg.FullWidth > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(cfg.FullWidth)
}

// useColor resolves "auto" against the terminal on stdout.
func useColor(mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
		return lipgloss.ColorProfile() != termenv.Ascii, nil
	default:
		return false, fmt.Errorf("%w: color %q must be auto, always or never", ErrInvalidConfig, mode)
	}
}
