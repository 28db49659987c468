package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	configPath := flag.String("config", "", "path to shade.yaml (empty = defaults + SHADE_* env)")
	listen := flag.String("listen", "", "websocket listen address (overrides config)")
	workspace := flag.String("workspace", ".", "workspace root for persisted state")
	service := flag.String("service", "", "analysis service command (overrides config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, options{
		configPath: *configPath,
		listen:     *listen,
		workspace:  *workspace,
		service:    *service,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "shade: %v\n", err)
		os.Exit(1)
	}
}
