package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"
	"golang.org/x/sync/errgroup"

	"github.com/viant/omnicm/api"
	omcp "github.com/viant/omnicm/mcp"
	"github.com/viant/omnicm/service"
)

func serveCmd(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional, defaults to ~/omnicm/config.yaml if present)")
	root := flags.String("root", "", "local root directory (afs driver, used when no config is given)")
	addr := flags.String("addr", "", "REST contents API address (default from config or 127.0.0.1:8888)")
	mcpAddr := flags.String("mcp-addr", "", "MCP server address (default from config or 127.0.0.1:6061)")
	noMCP := flags.Bool("no-mcp", false, "serve the REST contents API only")
	metricsLog := flags.Bool("metrics-log", false, "log mcp metric lines")
	debugSleep := flags.Int("debug-sleep", 0, "debug: sleep N seconds before execution (for gops)")
	flags.Parse(args)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	maybeDebugSleep("serve", *debugSleep)

	cfg, err := loadConfig(ctx, *configPath, *root)
	if err != nil {
		log.Fatalf("serve: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *mcpAddr != "" {
		cfg.Server.MCPAddr = *mcpAddr
	}

	svc, err := service.New(ctx, cfg)
	if err != nil {
		log.Fatalf("service init: %v", err)
	}
	defer func() { _ = svc.Close() }()

	servers := []*http.Server{newAPIServer(cfg.Server.Addr, svc.Store())}
	log.Printf("omnicm contents api listening on %s root=%s driver=%s", cfg.Server.Addr, cfg.Contents.Root, cfg.Backend.Driver)
	if !*noMCP {
		mcpServer, err := newMCPServer(ctx, cfg.Server.MCPAddr, svc.Store(), *metricsLog)
		if err != nil {
			log.Fatal(err)
		}
		servers = append(servers, mcpServer)
		log.Printf("omnicm-mcp listening on %s", mcpServer.Addr)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		group.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %v", sig)
	case <-groupCtx.Done():
	}
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	for _, srv := range servers {
		if err := srv.Shutdown(ctxShutdown); err != nil {
			log.Printf("http shutdown error: %v", err)
		}
	}
	if err := group.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Printf("omnicm stopped")
}

func newAPIServer(addr string, store api.Store) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           api.New(store).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func newMCPServer(ctx context.Context, addr string, store api.Store, metricsLog bool) (*http.Server, error) {
	server, err := mcpsrv.New(
		mcpsrv.WithImplementation(schema.Implementation{Name: "omnicm-mcp", Version: "0.1.0"}),
		mcpsrv.WithNewHandler(omcp.NewHandler(store, metricsLog)),
		mcpsrv.WithEndpointAddress(addr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI("/mcp"),
	)
	if err != nil {
		return nil, err
	}
	server.UseStreamableHTTP(true)
	httpServer := server.HTTP(ctx, addr)
	httpServer.ReadHeaderTimeout = 10 * time.Second
	httpServer.ReadTimeout = 60 * time.Second
	httpServer.WriteTimeout = 60 * time.Second
	httpServer.IdleTimeout = 120 * time.Second
	return httpServer, nil
}
