// Command matchbroker runs the two-player matchmaking broker.
//
// It supports three commands:
//  1. "serve" (default) – runs the HTTP server exposing the WebSocket lobby, REST API, metrics and an /mcp endpoint
//  2. "mcp" – runs an MCP stdio server, spinning up an internal HTTP server if none is reachable
//  3. "catalog check" – validates every game file in the catalog directory
//
// Settings come from config.yaml, MATCHBROKER_* environment variables and
// flags, in increasing priority. Optional ngrok tunneling gives easy external
// access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/matchbroker/api"
	"github.com/wricardo/matchbroker/config"
	"github.com/wricardo/matchbroker/lobby/broker"
	"github.com/wricardo/matchbroker/lobby/catalog"
	"github.com/wricardo/matchbroker/lobby/session"
	"github.com/wricardo/matchbroker/transport/mcp"
	"github.com/wricardo/matchbroker/transport/redisbus"
	"github.com/wricardo/matchbroker/transport/websocket"
	"github.com/wricardo/matchbroker/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "matchbroker"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags on the root are inherited by every
// command.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "Two-player matchmaking room broker",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "port", Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "catalog-dir", Usage: "Directory containing game definitions", Sources: cli.EnvVars("CATALOG_DIR")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for cross-instance lobby events"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run the HTTP server with WebSocket lobby, REST API and MCP endpoint",
				Action:  serveAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server",
				Action:  mcpAction,
			},
			{
				Name:  "catalog",
				Usage: "Catalog maintenance",
				Commands: []*cli.Command{
					{
						Name:   "check",
						Usage:  "Validate every game file in the catalog directory",
						Action: checkCatalogAction,
					},
				},
			},
		},
	}
}

// loadConfig reads config files and the environment, then applies flags
// that were set explicitly.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	applyFlags(cmd, &cfg)
	return cfg, nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.String("port")
	}
	if cmd.IsSet("catalog-dir") {
		cfg.Catalog.Dir = cmd.String("catalog-dir")
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("redis-addr") {
		cfg.Redis.Addr = cmd.String("redis-addr")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// services holds everything wired together for one process.
type services struct {
	catalog *catalog.Manager
	matches *session.Manager
	hub     *websocket.Hub
	broker  *broker.Broker
	bus     *redisbus.Bus
	handler *api.Server
}

// initializeServices wires the catalog, match ledger, hub and broker.
func initializeServices(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	cat, err := catalog.NewManager(cfg.Catalog.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}

	var matches *session.Manager
	if cfg.Matches.ArchiveDir != "" {
		persistence, err := session.NewFilePersistence(cfg.Matches.ArchiveDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create match archive: %w", err)
		}
		matches = session.NewManagerWithPersistence(persistence, logger.Named("matches"))
		if err := matches.LoadPersistedMatches(); err != nil {
			logger.Warn("failed to load archived matches", zap.Error(err))
		}
	} else {
		matches = session.NewManager(logger.Named("matches"))
	}

	hub := websocket.NewHub(logger.Named("ws"))
	b := broker.New(hub, broker.Options{
		Sink:    matches,
		Catalog: cat,
		Logger:  logger.Named("broker"),
	})
	hub.SetDispatcher(b)
	hub.OnDisconnect(b.HandleDisconnect)

	svc := &services{
		catalog: cat,
		matches: matches,
		hub:     hub,
		broker:  b,
	}

	if cfg.Redis.Addr != "" {
		bus, err := redisbus.New(ctx, redisbus.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, logger.Named("redis"))
		if err != nil {
			return nil, err
		}
		hub.SetBus(bus)
		svc.bus = bus
	}

	svc.handler = api.NewServer(api.Deps{
		Lobby:   b,
		Catalog: cat,
		Matches: matches,
		Hub:     hub,
		Logger:  logger.Named("api"),
	})

	return svc, nil
}

func (s *services) Close() {
	if s.bus != nil {
		s.bus.Close()
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version))
	return runHTTPServer(ctx, cfg, logger)
}

// runHTTPServer serves until ctx is cancelled. If ngrok is enabled it also
// provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	svc, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go svc.hub.Run(hubCtx)
	go matchCleanupRoutine(hubCtx, svc.matches, cfg.Matches, logger)

	addr := cfg.Server.Addr()
	mcpClient := mcp.NewClient("http://" + loopbackAddr(cfg.Server))
	svc.handler.Router().HandleFunc("/mcp", mcpHandler(mcpClient)).Methods("POST")

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     svc.handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("ws", "ws://"+addr+"/ws"),
			zap.String("api", "http://"+addr+"/api"),
			zap.String("mcp", "http://"+addr+"/mcp"))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, svc.handler, logger.Named("ngrok"))
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	cancelHub()

	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled.
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger *zap.Logger) {
	if cfg.AuthToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("ngrok tunnel established", zap.String("url", tun.URL()))
	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// mcpHandler answers JSON-RPC messages posted to /mcp.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// loopbackAddr is where in-process callers reach the server. A wildcard
// host is not dialable on every platform.
func loopbackAddr(s config.ServerConfig) string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, s.Port)
}

// matchCleanupRoutine periodically removes matches that have not been
// accessed within the retention window.
func matchCleanupRoutine(ctx context.Context, manager *session.Manager, cfg config.MatchesConfig, logger *zap.Logger) {
	if cfg.CleanupInterval <= 0 || cfg.Retention <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredMatches(cfg.Retention); removed > 0 {
				logger.Info("cleaned up expired matches", zap.Int("removed", removed))
			}
		}
	}
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Stdout carries the MCP protocol, so logs go to stderr only.
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	if cfg.Debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	return runStdioMCP(ctx, cfg, logger)
}

// runStdioMCP runs an MCP stdio server. It reuses a broker already listening
// on the configured address; if none answers, it starts an internal HTTP
// server on a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	externalURL := "http://" + loopbackAddr(cfg.Server)
	baseURL := externalURL

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/healthz")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logger.Info("using external server for MCP", zap.String("url", externalURL))
	} else {
		logger.Info("no external server found, starting internal HTTP server")

		svc, err := initializeServices(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		hubCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go svc.hub.Run(hubCtx)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internal := &http.Server{Handler: svc.handler}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("internal HTTP server error", zap.Error(err))
			}
		}()
		defer internal.Close()

		baseURL = "http://" + listener.Addr().String()
		logger.Info("internal HTTP server ready", zap.String("url", baseURL))
	}

	mcpClient := mcp.NewClient(baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func checkCatalogAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dir := cfg.Catalog.Dir
	if cmd.Args().Present() {
		dir = cmd.Args().First()
	}

	results, err := catalog.CheckDir(dir)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintf(cmd.Root().Writer, "No game files found in %s\n", dir)
		return nil
	}

	if !validate.WriteReport(cmd.Root().Writer, results) {
		return errors.New("catalog has invalid games")
	}
	return nil
}
