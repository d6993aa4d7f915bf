// streamtail connects to a monitor's render stream and prints each frame.
// Usage: go run ./cmd/streamtail --url ws://localhost:8090/ws
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/quantpulse-monitor/internal/render"
	"github.com/rickgao/quantpulse-monitor/internal/stream"
)

func main() {
	url := flag.String("url", "ws://localhost:8090/ws", "render stream URL")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	tail := stream.NewTail(stream.DefaultTailConfig(*url), logger)
	if err := tail.Connect(ctx); err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer tail.Close()

	logger.Info("connected", "url", *url)

	out := render.New(os.Stdout)
	var frames int
	for {
		select {
		case <-ctx.Done():
			logger.Info("disconnected", "frames", frames)
			return
		case err := <-tail.Errors():
			logger.Error("stream error", "error", err, "frames", frames)
			os.Exit(1)
		case f := <-tail.Frames():
			frames++
			if *verbose {
				data, _ := json.MarshalIndent(f.Frame, "", "  ")
				out.Printf("%s", data)
				continue
			}
			out.HandleSnapshot(f.Data)
		}
	}
}
