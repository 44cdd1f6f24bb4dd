package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/tobert/flamezoom/internal/span"
)

// SampleCommand returns the CLI command definition for the 'sample' subcommand.
// It produces synthetic traces either as OTLP JSONL or over OTLP gRPC.
func SampleCommand() *cli.Command {
	return &cli.Command{
		Name:  "sample",
		Usage: "Generate synthetic traces for trying out the viewer",
		Description: `Generates random span forests and writes each as one OTLP JSON line
(the collector file exporter format), or sends them to a running
OTLP gRPC receiver with --endpoint.

  flamezoom sample --count 5 --out traces.jsonl
  flamezoom view --file traces.jsonl --list`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "File to append JSONL to (default: stdout)",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Send over OTLP gRPC to this host:port instead of writing JSONL",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Number of traces to generate",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Maximum span depth",
				Value: 6,
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed (0 for random)",
			},
			&cli.StringFlag{
				Name:  "service",
				Usage: "service.name resource attribute",
				Value: "flamezoom-sample",
			},
		},
		Action: runSample,
	}
}

func runSample(ctx context.Context, cmd *cli.Command) error {
	seed := cmd.Uint64("seed")
	if seed == 0 {
		seed = rand.Uint64()
	}
	batches := generateBatches(rand.New(rand.NewPCG(seed, seed)), int(cmd.Int("count")), int(cmd.Int("depth")), cmd.String("service"))

	if endpoint := cmd.String("endpoint"); endpoint != "" {
		return sendBatches(ctx, endpoint, batches)
	}

	out := cmd.Root().Writer
	if path := cmd.String("out"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	if err := writeBatches(out, batches); err != nil {
		return err
	}
	if cmd.Bool("verbose") {
		log.Printf("✅ Wrote %d traces (seed %d)\n", len(batches), seed)
	}
	return nil
}

// generateBatches builds count traces, each with its own random trace id and
// wall-clock anchored timestamps.
func generateBatches(rng *rand.Rand, count, depth int, service string) []*tracepb.TracesData {
	base := uint64(time.Now().UnixNano())
	batches := make([]*tracepb.TracesData, 0, count)
	for range count {
		forest := span.Generate(rng, depth)
		if len(forest) == 0 {
			continue
		}
		end := forest[len(forest)-1].End
		shift(forest, base)
		base += end

		traceID := make([]byte, 16)
		for i := range traceID {
			traceID[i] = byte(rng.UintN(256))
		}
		batches = append(batches, &tracepb.TracesData{
			ResourceSpans: []*tracepb.ResourceSpans{span.ToOTLP(forest, traceID, service)},
		})
	}
	return batches
}

func shift(forest []span.Span, by uint64) {
	for i := range forest {
		forest[i].Start += by
		forest[i].End += by
		shift(forest[i].Children, by)
	}
}

func writeBatches(w io.Writer, batches []*tracepb.TracesData) error {
	for _, td := range batches {
		line, err := protojson.Marshal(td)
		if err != nil {
			return fmt.Errorf("failed to encode trace: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func sendBatches(ctx context.Context, endpoint string, batches []*tracepb.TracesData) error {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create grpc client: %w", err)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)
	for _, td := range batches {
		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := client.Export(sendCtx, &collectortrace.ExportTraceServiceRequest{
			ResourceSpans: td.ResourceSpans,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to export trace: %w", err)
		}
	}
	log.Printf("📡 Sent %d traces to %s\n", len(batches), endpoint)
	return nil
}
