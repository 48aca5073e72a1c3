// Command vad-server serves the streaming VAD engine over WebSocket.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jims57/silero-vad/pkg/server"
	"github.com/jims57/silero-vad/pkg/trace"
	"github.com/jims57/silero-vad/pkg/vad"
)

func main() {
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Fatalf("trace init: %v", err)
	}
	defer trace.Shutdown(context.Background())

	if err := vad.InitRuntime(os.Getenv("ONNXRUNTIME_LIB")); err != nil {
		log.Fatalf("init runtime: %v", err)
	}
	defer vad.DestroyRuntime()

	cfg := server.DefaultConfig()
	if addr := os.Getenv("VAD_SERVER_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if model := os.Getenv("SILERO_MODEL"); model != "" {
		cfg.ModelPath = model
	}
	if out := os.Getenv("VAD_OUTPUT_DIR"); out != "" {
		cfg.OutputDir = out
	}

	if cfg.ModelPath == "" {
		log.Fatal("SILERO_MODEL is required")
	}

	srv := server.NewServer(cfg)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
