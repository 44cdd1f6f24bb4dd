package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tobert/flamezoom/internal/filereader"
	"github.com/tobert/flamezoom/internal/mcpserver"
	"github.com/tobert/flamezoom/internal/otlpreceiver"
	"github.com/tobert/flamezoom/internal/session"
	"github.com/tobert/flamezoom/internal/storage"
	"github.com/tobert/flamezoom/internal/webui"
)

// ServeCommand returns the CLI command definition for the 'serve' subcommand.
// This command starts the OTLP gRPC receiver, the web UI and the MCP stdio server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Collect traces and browse them in the web UI or over MCP",
		Description: `Starts an OTLP gRPC receiver on localhost:0 (ephemeral port), a web UI
on localhost:4381 and an MCP server on stdio. All three share one
session: zooming in the browser is visible to the agent and vice versa.

Traces can also be tailed from JSONL files written by an OpenTelemetry
Collector file exporter, named with --file or found in --otel-config.
The first trace read from a file is loaded automatically.

Use --transport none to run without MCP, e.g. from a plain terminal.`,
		Flags: append(displayFlags(),
			&cli.IntFlag{
				Name:  "trace-buffer-size",
				Usage: "Number of spans to buffer",
			},
			&cli.StringFlag{
				Name:  "otlp-host",
				Usage: "OTLP server bind address",
			},
			&cli.IntFlag{
				Name:  "otlp-port",
				Usage: "OTLP server port (0 for ephemeral)",
			},
			&cli.StringFlag{
				Name:  "webui-host",
				Usage: "Web UI bind address",
			},
			&cli.IntFlag{
				Name:  "webui-port",
				Usage: "Web UI port (0 disables the web UI)",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "MCP transport: stdio or none",
			},
			&cli.StringSliceFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "OTLP JSONL trace file to tail (repeatable)",
			},
			&cli.StringFlag{
				Name:  "otel-config",
				Usage: "OpenTelemetry Collector config whose file exporters should be tailed",
			},
		),
		Action: runServe,
	}
}

// runServe is the action handler for the serve command.
// It wires together all components: storage, receivers, session, web UI and MCP server.
func runServe(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}

	files := cmd.StringSlice("file")
	if cfg.OtelConfig != "" {
		paths, err := ParseOtelConfig(cfg.OtelConfig)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			log.Printf("⚠️  No traces file exporters found in %s\n", cfg.OtelConfig)
		}
		files = append(files, paths...)
	}

	if cfg.Verbose {
		log.Println("🔧 Configuration:")
		log.Printf("  Full width: %d (%d columns)\n", cfg.FullWidth, cfg.Columns)
		log.Printf("  Trace buffer: %d spans\n", cfg.TraceBufferSize)
		log.Printf("  OTLP bind: %s:%d\n", cfg.OTLPHost, cfg.OTLPPort)
		log.Printf("  Web UI bind: %s:%d\n", cfg.WebUIHost, cfg.WebUIPort)
		log.Printf("  Transport: %s\n", cfg.Transport)
		for _, f := range files {
			log.Printf("  Tailing: %s\n", f)
		}
		log.Println()
	}

	ctx, cancel := context.WithCancel(cliCtx)
	defer cancel()

	// 1. Storage and the session shared by every front end
	traceStorage := storage.NewTraceStorage(cfg.TraceBufferSize)
	sess := session.New(fullWidth(cfg), profileOptions(cfg)...)

	// 2. OTLP gRPC receiver
	otlpServer, err := otlpreceiver.NewServer(
		otlpreceiver.Config{
			Host:    cfg.OTLPHost,
			Port:    cfg.OTLPPort,
			Verbose: cfg.Verbose,
		},
		traceStorage,
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP server: %w", err)
	}

	errChan := make(chan error, 3)
	go func() {
		if err := otlpServer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("OTLP server error: %w", err)
		}
	}()
	defer otlpServer.Stop()

	endpoint := otlpServer.Endpoint()
	log.Printf("🌐 OTLP gRPC server listening on %s\n", endpoint)
	if cfg.Verbose {
		log.Printf("   Programs can send traces with: OTEL_EXPORTER_OTLP_ENDPOINT=%s\n", endpoint)
	}

	// 3. File tailers
	for _, path := range files {
		reader, err := filereader.New(filereader.Config{
			Path:    path,
			Verbose: cfg.Verbose,
			OnLoad: func(int) {
				if sess.TraceID() != "" {
					return
				}
				if id, err := sess.LoadFrom(traceStorage, ""); err != nil {
					log.Printf("⚠️  Could not load trace from %s: %v\n", path, err)
				} else if cfg.Verbose {
					log.Printf("🔥 Loaded trace %s\n", id)
				}
			},
		}, traceStorage)
		if err != nil {
			return fmt.Errorf("failed to create file reader: %w", err)
		}
		go func() {
			if err := reader.Watch(ctx); err != nil {
				log.Printf("⚠️  Stopped tailing %s: %v\n", reader.Path(), err)
			}
		}()
	}

	// 4. Web UI
	webURL := ""
	if cfg.WebUIPort != 0 {
		addr := net.JoinHostPort(cfg.WebUIHost, strconv.Itoa(cfg.WebUIPort))
		webURL = "http://" + addr + "/ui/"
		ui := webui.New(traceStorage, sess, cfg.Verbose)
		go func() {
			if err := ui.ListenAndServe(ctx, addr); err != nil {
				errChan <- fmt.Errorf("web UI error: %w", err)
			}
		}()
		log.Printf("🔥 Web UI at %s\n", webURL)
	}

	// 5. Setup graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			if cfg.Verbose {
				log.Printf("📡 Received signal %v, initiating graceful shutdown...\n", sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Transport == "none" {
		log.Println("🎯 Running without MCP, press Ctrl-C to stop")
		select {
		case <-ctx.Done():
			return nil
		case err := <-errChan:
			return err
		}
	}

	// 6. MCP server on stdio (blocks until stdin closes or context cancelled)
	mcpServer, err := mcpserver.NewServer(traceStorage, sess, mcpserver.ServerOptions{
		Endpoint: endpoint,
		WebURL:   webURL,
		Columns:  cfg.Columns,
		Verbose:  cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	log.Println("🎯 MCP server ready on stdio")
	log.Println("💡 Use MCP tools to load traces and zoom the flame graph")
	log.Println()

	if err := mcpServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		select {
		case serveErr := <-errChan:
			return serveErr
		default:
		}
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
