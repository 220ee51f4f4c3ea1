package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbocsi/dartlink/config"
	"github.com/mbocsi/dartlink/robot"
	"github.com/mbocsi/dartlink/server"
)

var version = "dev"

func main() {
	cfg := config.DefaultServerConfig()
	if _, err := config.Load("dartlink-server", cfg, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// stdout belongs to the MCP transport when it is enabled.
	var logOut io.Writer = os.Stdout
	if cfg.MCP {
		logOut = os.Stderr
	}
	if err := config.SetupLogger(cfg.LogLevel, cfg.LogFormat, logOut); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	simulator := robot.NewSimulator(robot.WithMotionTime(cfg.MotionTime))
	srv := server.NewServer(server.Options{
		Token:    cfg.Token,
		Registry: robot.NewRegistry(simulator),
	})

	tcpServer := server.NewTCPTransport(cfg.Addr())
	tcpServer.SetName("Main TCP server")
	tcpServer.SetMaxClients(cfg.MaxClients)
	tcpServer.SetDescription("Newline delimited JSON robot link")
	srv.RegisterTransport(tcpServer)

	if cfg.WSAddr != "" {
		wsServer := server.NewWSTransport(cfg.WSAddr)
		wsServer.SetName("WebSocket server")
		wsServer.SetMaxClients(cfg.MaxClients)
		wsServer.SetDescription("Robot link over WebSocket text messages")
		srv.RegisterTransport(wsServer)
	}
	if cfg.HTTPAddr != "" {
		srv.RegisterService(server.NewStatusAPI(cfg.HTTPAddr, srv))
	}
	if cfg.MCP {
		srv.RegisterService(server.NewMCPServer(srv, version))
	}
	if cfg.Advertise {
		srv.RegisterService(server.NewAdvertiser(tcpServer, version))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting dartlink server", "version", version, "addr", cfg.Addr())
	if err := srv.Start(ctx); err != nil {
		slog.Error("Error running dartlink server", "error", err.Error())
		os.Exit(1)
	}
}
