package filereader

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

type collector struct {
	mu    sync.Mutex
	names []string
}

func (c *collector) ReceiveSpans(ctx context.Context, rs []*tracepb.ResourceSpans) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rs {
		for _, ss := range r.ScopeSpans {
			for _, s := range ss.Spans {
				c.names = append(c.names, s.Name)
			}
		}
	}
	return nil
}

func (c *collector) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

func jsonLine(t *testing.T, names ...string) string {
	t.Helper()
	var spans []*tracepb.Span
	for i, n := range names {
		spans = append(spans, &tracepb.Span{
			TraceId:           make([]byte, 16),
			SpanId:            []byte{0, 0, 0, 0, 0, 0, 0, byte(i + 1)},
			Name:              n,
			StartTimeUnixNano: 10,
			EndTimeUnixNano:   20,
		})
	}
	data := &tracepb.TracesData{ResourceSpans: []*tracepb.ResourceSpans{{
		ScopeSpans: []*tracepb.ScopeSpans{{Spans: spans}},
	}}}
	b, err := protojson.Marshal(data)
	require.NoError(t, err)
	return string(b) + "\n"
}

func appendFile(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	appendFile(t, path, jsonLine(t, "all", "inside1")+"not json\n\n"+jsonLine(t, "inside2"))

	c := &collector{}
	n, err := LoadFile(context.Background(), path, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"all", "inside1", "inside2"}, c.got())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), &collector{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{}, &collector{})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestLoadOnlyReadsNewData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	appendFile(t, path, jsonLine(t, "first"))

	c := &collector{}
	r, err := New(Config{Path: path}, c)
	require.NoError(t, err)

	n, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	appendFile(t, path, jsonLine(t, "second"))
	n, err = r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"first", "second"}, c.got())

	stats := r.Stats()
	assert.Equal(t, 2, stats.Lines)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), stats.Offset)
}

func TestLoadDefersPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	full := jsonLine(t, "late")
	appendFile(t, path, full[:len(full)/2])

	c := &collector{}
	r, err := New(Config{Path: path}, c)
	require.NoError(t, err)

	n, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, r.Stats().Offset)
	assert.Zero(t, r.Stats().BadLines)

	appendFile(t, path, full[len(full)/2:])
	n, err = r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"late"}, c.got())
}

func TestLoadAfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	appendFile(t, path, jsonLine(t, "a")+jsonLine(t, "b"))

	c := &collector{}
	r, err := New(Config{Path: path}, c)
	require.NoError(t, err)
	_, err = r.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(jsonLine(t, "c")), 0o644))
	n, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a", "b", "c"}, c.got())
}

func TestWatchPicksUpAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	appendFile(t, path, jsonLine(t, "before"))

	loads := make(chan int, 8)
	c := &collector{}
	r, err := New(Config{Path: path, OnLoad: func(n int) { loads <- n }}, c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	select {
	case <-loads:
	case <-time.After(5 * time.Second):
		t.Fatal("initial load did not happen")
	}

	appendFile(t, path, jsonLine(t, "after"))
	require.Eventually(t, func() bool {
		return len(c.got()) == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"before", "after"}, c.got())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
