// Package filereader reads OTLP traces from JSONL files written by the
// OpenTelemetry Collector's file exporter (one TracesData object per line)
// and feeds them to the same SpanReceiver the gRPC receiver uses.
package filereader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/protobuf/encoding/protojson"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

const (
	// OTLP JSON lines can be large for batched spans with many attributes.
	jsonlBufferInitial = 1 * 1024 * 1024  // 1MB initial buffer
	jsonlBufferMax     = 10 * 1024 * 1024 // 10MB maximum line size
)

// ErrNoPath is returned when a Reader is created without a file path.
var ErrNoPath = errors.New("file path is required")

// SpanReceiver is the interface storage must implement to receive spans.
type SpanReceiver interface {
	ReceiveSpans(ctx context.Context, resourceSpans []*tracepb.ResourceSpans) error
}

// Config holds configuration for a Reader.
type Config struct {
	Path    string // traces JSONL file, e.g. /var/otel/traces/traces.jsonl
	Verbose bool

	// OnLoad, if set, is called after every read that consumed at least one line.
	OnLoad func(lines int)
}

// Reader tails a single JSONL trace file. It remembers how far it has read so
// a re-read only consumes data appended since the last one.
type Reader struct {
	path     string
	receiver SpanReceiver
	verbose  bool
	onLoad   func(int)

	mu     sync.Mutex
	offset int64
	lines  int
	bad    int
}

// New creates a Reader for cfg.Path. The file does not need to exist yet.
func New(cfg Config, receiver SpanReceiver) (*Reader, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	if receiver == nil {
		return nil, fmt.Errorf("span receiver cannot be nil")
	}
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.Path, err)
	}
	return &Reader{
		path:     path,
		receiver: receiver,
		verbose:  cfg.Verbose,
		onLoad:   cfg.OnLoad,
	}, nil
}

// LoadFile reads an entire JSONL trace file into receiver once.
// It returns the number of lines that parsed and were stored.
func LoadFile(ctx context.Context, path string, receiver SpanReceiver) (int, error) {
	r, err := New(Config{Path: path}, receiver)
	if err != nil {
		return 0, err
	}
	return r.Load(ctx)
}

// Path returns the absolute path being read.
func (r *Reader) Path() string {
	return r.path
}

// Load reads from the last known offset to the end of the file. Lines that do
// not parse as TracesData are skipped and counted. A file that shrank since
// the last read is assumed rotated and is read from the start.
func (r *Reader) Load(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.Size() < r.offset {
		if r.verbose {
			log.Printf("📁 filereader: %s shrank, reading from start\n", filepath.Base(r.path))
		}
		r.offset = 0
	}
	if r.offset > 0 {
		if _, err := file.Seek(r.offset, io.SeekStart); err != nil {
			r.offset = 0
		}
	}

	br := bufio.NewReaderSize(file, jsonlBufferInitial)

	count := 0
	consumed := r.offset
	for {
		if err := ctx.Err(); err != nil {
			r.offset = consumed
			return count, err
		}

		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			r.offset = consumed
			return count, fmt.Errorf("reading %s: %w", r.path, readErr)
		}
		if len(line) == 0 {
			break
		}
		complete := line[len(line)-1] == '\n'
		body := bytes.TrimSpace(line)

		var err error
		switch {
		case len(body) == 0:
		case len(body) > jsonlBufferMax:
			err = fmt.Errorf("line of %d bytes exceeds limit", len(body))
		default:
			err = r.handleLine(ctx, body)
		}

		// An unterminated final line that fails to parse is probably still
		// being written; leave it for the next read.
		if !complete && err != nil {
			break
		}
		consumed += int64(len(line))
		if err != nil {
			r.bad++
			if r.verbose {
				log.Printf("⚠️  filereader: skipping line in %s: %v\n", filepath.Base(r.path), err)
			}
		} else if len(body) > 0 {
			count++
		}
		if readErr != nil {
			break
		}
	}

	r.offset = consumed
	r.lines += count

	if count > 0 && r.onLoad != nil {
		r.onLoad(count)
	}
	return count, nil
}

func (r *Reader) handleLine(ctx context.Context, line []byte) error {
	var data tracepb.TracesData
	if err := protojson.Unmarshal(line, &data); err != nil {
		return fmt.Errorf("parse trace JSON: %w", err)
	}
	if len(data.ResourceSpans) == 0 {
		return nil
	}
	return r.receiver.ReceiveSpans(ctx, data.ResourceSpans)
}

// Watch loads the file and then re-reads it whenever it is written or
// re-created, until ctx is cancelled. The parent directory is watched so
// rotation and late creation are both seen.
func (r *Reader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if r.verbose {
		log.Printf("📁 filereader: watching %s\n", r.path)
	}

	if _, err := r.Load(ctx); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  filereader: initial load of %s: %v\n", r.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != r.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				r.mu.Lock()
				r.offset = 0
				r.mu.Unlock()
			}
			count, err := r.Load(ctx)
			if err != nil {
				log.Printf("⚠️  filereader: error reading %s: %v\n", r.path, err)
			} else if r.verbose && count > 0 {
				log.Printf("📁 filereader: loaded %d new lines from %s\n", count, filepath.Base(r.path))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  filereader: watcher error: %v\n", err)
		}
	}
}

// Stats describes what a Reader has consumed.
type Stats struct {
	Path     string `json:"path"`
	Offset   int64  `json:"offset"`
	Lines    int    `json:"lines"`
	BadLines int    `json:"bad_lines"`
}

// Stats returns current statistics.
func (r *Reader) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Path: r.path, Offset: r.offset, Lines: r.lines, BadLines: r.bad}
}
