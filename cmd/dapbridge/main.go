package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/tmajors/dapbridge/internal/adapter"
	"github.com/tmajors/dapbridge/internal/config"
	"github.com/tmajors/dapbridge/internal/engine"
	"github.com/tmajors/dapbridge/internal/mcp"
	"github.com/tmajors/dapbridge/internal/source"
	"github.com/tmajors/dapbridge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	mode := flag.String("mode", "", "Capability mode: 'readonly' or 'full'")
	listen := flag.String("listen", "", "TCP address for editor connections; empty serves one session over stdio")
	engineAddr := flag.String("engine", "", "TCP address of the debug engine")
	serveMCP := flag.Bool("mcp", false, "Serve the MCP tool surface over stdio instead of DAP")
	showVersion := flag.Bool("version", false, "Show version and exit")
	help := flag.Bool("help", false, "Show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("dapbridge version %s\n", version.Version)
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Command line flags override the file
	switch *mode {
	case "":
	case "readonly":
		cfg.Mode = config.ModeReadOnly
	case "full":
		cfg.Mode = config.ModeFull
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q: expected 'readonly' or 'full'\n", *mode)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *engineAddr != "" {
		cfg.Engine = *engineAddr
	}

	// stdout carries the protocol stream, so logs go to stderr
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	dialer := func(ctx context.Context) (adapter.Engine, error) {
		transport, err := engine.NewTCPTransport(cfg.Engine)
		if err != nil {
			return nil, err
		}
		return engine.NewClient(transport, log), nil
	}

	srv := adapter.NewServer(dialer, source.Identity{}, cfg.MaxSessions, cfg.SessionTimeout.Std(), log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		srv.Close()
		os.Exit(0)
	}()

	switch {
	case *serveMCP:
		log.Info("serving MCP over stdio", "mode", cfg.Mode, "engine", cfg.Engine)
		mcpServer := mcp.NewServer(cfg, srv, version.Version)
		if err := mcpServer.ServeStdio(); err != nil {
			srv.Close()
			log.Error("mcp server error", "err", err)
			os.Exit(1)
		}
	case cfg.Listen != "":
		listener, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			log.Error("failed to listen", "addr", cfg.Listen, "err", err)
			os.Exit(1)
		}
		log.Info("serving DAP", "addr", cfg.Listen, "engine", cfg.Engine)
		if err := srv.Serve(listener); err != nil {
			srv.Close()
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	default:
		log.Info("serving DAP over stdio", "engine", cfg.Engine)
		if err := srv.ServeStdio(context.Background()); err != nil {
			srv.Close()
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}
	srv.Close()
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printHelp() {
	fmt.Println(`dapbridge: a debug adapter for inspector-style engines

Translates between editors speaking the Debug Adapter Protocol and a
remote-debugging engine. Also exposes the same sessions as MCP tools so
AI agents can drive them.

USAGE:
    dapbridge [OPTIONS]

OPTIONS:
    -config <path>     Path to configuration file (JSON)
    -mode <mode>       Capability mode: 'readonly' or 'full'
    -listen <addr>     TCP address for editor connections (default: stdio)
    -engine <addr>     TCP address of the debug engine
    -mcp               Serve the MCP tool surface over stdio instead of DAP
    -version           Show version and exit
    -help              Show this help message

CONFIGURATION:
    {
        "mode": "full",
        "listen": "",
        "engine": "127.0.0.1:9229",
        "maxSessions": 10,
        "sessionTimeout": "30m",
        "logLevel": "info"
    }`)
}
