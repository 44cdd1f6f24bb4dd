package cli

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/tobert/flamezoom/internal/filereader"
	"github.com/tobert/flamezoom/internal/otlpreceiver"
	"github.com/tobert/flamezoom/internal/storage"
)

// runApp runs a root command wired like the real binary, with an empty config
// file so the machine's own config does not leak in.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{}`), 0o644))

	var out bytes.Buffer
	app := &cli.Command{
		Name:   "flamezoom",
		Flags:  RootFlags(),
		Writer: &out,
		Commands: []*cli.Command{
			ViewCommand(),
			SampleCommand(),
		},
	}
	err := app.Run(context.Background(), append([]string{"flamezoom", "--config", cfgPath}, args...))
	return out.String(), err
}

func TestViewSample(t *testing.T) {
	out, err := runApp(t, "view", "--color", "never", "--columns", "60", "--seed", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "[all")
	assert.Contains(t, out, "inside2")
}

func TestViewSelectAndOutline(t *testing.T) {
	out, err := runApp(t, "view", "--color", "never", "--columns", "60",
		"--select", "all/inside2", "--outline")
	require.NoError(t, err)

	assert.Contains(t, out, "all › inside2")
	assert.Contains(t, out, "deep_inside2")
	assert.NotContains(t, out, "─ inside1", "zoomed view hides the sibling")
	assert.Contains(t, out, "└─")
}

func TestViewSelectUnknown(t *testing.T) {
	_, err := runApp(t, "view", "--color", "never", "--select", "all/nope")
	assert.ErrorContains(t, err, `select "all/nope"`)
}

func TestViewGenerate(t *testing.T) {
	out, err := runApp(t, "view", "--generate", "--depth", "4", "--seed", "7", "--color", "never", "--outline")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace generate")
	assert.Contains(t, out, "span_0_0")
}

func TestViewInvalidConfigFlag(t *testing.T) {
	_, err := runApp(t, "view", "--full-width", "0")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSampleRoundTripsThroughView(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")

	_, err := runApp(t, "sample", "--count", "3", "--depth", "4", "--seed", "11", "--out", path)
	require.NoError(t, err)

	ts := storage.NewTraceStorage(10_000)
	n, err := filereader.LoadFile(context.Background(), path, ts)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, ts.Stats().TraceCount)

	out, err := runApp(t, "view", "--file", path, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "Traces (3)")
	assert.Contains(t, out, "flamezoom-sample/span_0_0")

	out, err = runApp(t, "view", "--file", path, "--color", "never", "--outline")
	require.NoError(t, err)
	assert.Contains(t, out, "span_0_0")
}

func TestGenerateBatches(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	batches := generateBatches(rng, 4, 3, "svc")
	require.Len(t, batches, 4)

	ids := make(map[string]bool)
	var lastEnd uint64
	for _, td := range batches {
		require.Len(t, td.ResourceSpans, 1)
		spans := td.ResourceSpans[0].ScopeSpans[0].Spans
		require.NotEmpty(t, spans)
		ids[string(spans[0].TraceId)] = true

		// traces are laid out one after another
		assert.GreaterOrEqual(t, spans[0].StartTimeUnixNano, lastEnd)
		for _, s := range spans {
			lastEnd = max(lastEnd, s.EndTimeUnixNano)
		}
	}
	assert.Len(t, ids, 4)
}

func TestSampleSendsOverGRPC(t *testing.T) {
	ts := storage.NewTraceStorage(10_000)
	server, err := otlpreceiver.NewServer(otlpreceiver.Config{Host: "127.0.0.1"}, ts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.Start(ctx) }()
	defer server.Stop()

	_, err = runApp(t, "sample", "--count", "2", "--seed", "5", "--endpoint", server.Endpoint())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return ts.Stats().TraceCount == 2
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, uint64(2), server.Stats().Requests)
}
