package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lumen-chat/go-client/internal/composition/daemonserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (defaults to config)")
	configPath := flag.String("config", "", "Path to client.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for local state (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Lumen-RPC-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("lumen-syncd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *rpcToken != "" {
		_ = os.Setenv("LUMEN_RPC_TOKEN", *rpcToken)
	}

	srv, err := daemonserver.NewRPCServerWithOptions(*rpcAddr, *configPath, *dataDir)
	if err != nil {
		log.Fatalf("lumen-syncd failed to initialize: %v", err)
	}

	log.Println("lumen-syncd starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("lumen-syncd failed: %v", err)
	}
	log.Println("lumen-syncd stopped")
}
