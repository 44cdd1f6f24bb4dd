package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tobert/flamezoom/internal/filereader"
	"github.com/tobert/flamezoom/internal/session"
	"github.com/tobert/flamezoom/internal/span"
	"github.com/tobert/flamezoom/internal/storage"
	"github.com/tobert/flamezoom/internal/viz"
)

// ViewCommand returns the CLI command definition for the 'view' subcommand.
// It renders one flame graph to the terminal and exits.
func ViewCommand() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "Render a trace as a flame graph in the terminal",
		Description: `Loads a trace and prints its flame graph, scaled so the selected node
fills the terminal width.

The trace comes from --file (an OTLP JSONL file as written by the
collector file exporter), from --generate (a random forest), or, with
neither, from a small built-in sample.

--select zooms before printing. It takes span names from the root down,
separated by "/", e.g. --select all/inside2.`,
		Flags: append(displayFlags(),
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "OTLP JSONL trace file to read",
			},
			&cli.StringFlag{
				Name:  "trace",
				Usage: "Trace id to show from --file (default: the most recent)",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List the traces in --file instead of drawing one",
			},
			&cli.BoolFlag{
				Name:  "generate",
				Usage: "Draw a randomly generated forest",
			},
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Maximum depth of a generated forest",
				Value: 6,
			},
			&cli.StringFlag{
				Name:  "select",
				Usage: "Zoom into the node at this label path before drawing",
			},
			&cli.BoolFlag{
				Name:  "outline",
				Usage: "Also print the visible tree with node ids and widths",
			},
		),
		Action: runView,
	}
}

func runView(ctx context.Context, cmd *cli.Command) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	color, err := useColor(cfg.Color)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	if out == nil {
		out = io.Discard
	}

	sess := session.New(fullWidth(cfg), profileOptions(cfg)...)

	switch {
	case cmd.String("file") != "":
		ts := storage.NewTraceStorage(cfg.TraceBufferSize)
		n, err := filereader.LoadFile(ctx, cmd.String("file"), ts)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", cmd.String("file"), err)
		}
		if cfg.Verbose {
			log.Printf("📂 Read %d batches from %s\n", n, cmd.String("file"))
		}
		if cmd.Bool("list") {
			_, err := io.WriteString(out, viz.TraceTable(traceRows(ts, "")))
			return err
		}
		if _, err := sess.LoadFrom(ts, cmd.String("trace")); err != nil {
			return err
		}
	case cmd.Bool("generate"):
		seed := cfg.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		forest := span.Generate(rand.New(rand.NewPCG(seed, seed)), int(cmd.Int("depth")))
		if err := sess.Load(fmt.Sprintf("generated-%d", seed), forest); err != nil {
			return err
		}
	default:
		if err := sess.Load("sample", span.Sample()); err != nil {
			return err
		}
	}

	if sel := cmd.String("select"); sel != "" {
		if err := sess.SelectPath(strings.Split(strings.Trim(sel, "/"), "/")...); err != nil {
			return fmt.Errorf("select %q: %w", sel, err)
		}
	}

	state, err := sess.Snapshot()
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, renderState(state, viz.Options{Columns: cfg.Columns, Color: color}, cmd.Bool("outline")))
	return err
}

// renderState draws the header, breadcrumb and flame graph of a session state.
func renderState(state session.State, opts viz.Options, outline bool) string {
	labels := make([]string, len(state.Path))
	for i, c := range state.Path {
		labels[i] = c.Label
	}

	var b strings.Builder
	b.WriteString(viz.Header(state.TraceID, state.Spans, state.DurationNs))
	b.WriteString("\n")
	b.WriteString(viz.Breadcrumb(labels))
	b.WriteString("\n\n")
	b.WriteString(viz.Flame(state.View, opts))
	if outline {
		b.WriteString("\n")
		b.WriteString(viz.Outline(state.View))
	}
	return b.String()
}

func traceRows(ts *storage.TraceStorage, loaded string) []viz.TraceRow {
	summaries := ts.Traces()
	rows := make([]viz.TraceRow, len(summaries))
	for i, t := range summaries {
		rows[i] = viz.TraceRow{
			TraceID:    t.TraceID,
			Service:    t.Service,
			RootSpan:   t.RootSpan,
			SpanCount:  t.SpanCount,
			DurationNs: t.DurationNs,
			Loaded:     t.TraceID == loaded,
		}
	}
	return rows
}
