// Package main is the entry point for the sanctions website binary. It
// dispatches three subcommands (serve, check-index and version) via a switch
// on os.Args.
//
// Prometheus metrics and pprof are served on dedicated side ports, never on
// the public listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- served only on the internal profiling port
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanctions-web/sanctions-web/internal/api"
	"github.com/sanctions-web/sanctions-web/internal/catalog"
	"github.com/sanctions-web/sanctions-web/internal/config"
	"github.com/sanctions-web/sanctions-web/internal/content"
	"github.com/sanctions-web/sanctions-web/internal/index"
	"github.com/sanctions-web/sanctions-web/internal/markdown"
	"github.com/sanctions-web/sanctions-web/internal/redis"
	"github.com/sanctions-web/sanctions-web/internal/safego"
	"github.com/sanctions-web/sanctions-web/internal/storage"
	"github.com/sanctions-web/sanctions-web/internal/telemetry"
	"github.com/sanctions-web/sanctions-web/internal/upstream"
	"github.com/sanctions-web/sanctions-web/internal/web"

	// Import storage backends to register them
	_ "github.com/sanctions-web/sanctions-web/internal/storage/azure"
	_ "github.com/sanctions-web/sanctions-web/internal/storage/gcs"
	_ "github.com/sanctions-web/sanctions-web/internal/storage/local"
	_ "github.com/sanctions-web/sanctions-web/internal/storage/s3"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("sanctions-web %s (commit %s, built %s)\n", version, commit, buildDate)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	switch command {
	case "serve":
		return serve(cfg)
	case "check-index":
		return checkIndex(cfg)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, check-index, version", command)
	}
}

// loadIndex reads the index snapshot through the configured storage backend
func loadIndex(ctx context.Context, cfg *config.Config, md *markdown.Renderer) (storage.Storage, *index.Index, error) {
	store, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	idx, err := index.Load(ctx, store, cfg.Index.Path, index.Options{
		BaseURL:  cfg.Server.BaseURL,
		Markdown: md,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, idx, nil
}

// loadContent reads articles and documentation. A missing content
// directory leaves the site without them.
func loadContent(path string, md *markdown.Renderer) (*content.Set, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Warn("content directory not found, articles and docs disabled", "path", path)
		return nil, nil
	}
	set, err := content.Load(os.DirFS(path), md)
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}
	slog.Info("content loaded", "path", path, "articles", len(set.Articles()))
	return set, nil
}

// checkIndex validates the snapshot the server would load and prints a summary
func checkIndex(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, idx, err := loadIndex(ctx, cfg, markdown.New())
	if err != nil {
		return err
	}
	counts := idx.TypeCounts()
	fmt.Printf("index %s (%s %s)\n", cfg.Index.Path, idx.App(), idx.Version())
	fmt.Printf("  checksum:    %s\n", idx.Checksum())
	fmt.Printf("  size:        %d bytes\n", idx.Size())
	fmt.Printf("  collections: %d\n", counts[string(index.TypeCollection)])
	fmt.Printf("  sources:     %d\n", counts[string(index.TypeSource)])
	fmt.Printf("  external:    %d\n", counts[string(index.TypeExternal)])
	return nil
}

func startSideServers(cfg *config.Config) {
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go("metrics-server", func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	if cfg.Telemetry.Profiling.Enabled {
		pprofAddr := fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port)
		safego.Go("pprof-server", func() {
			slog.Info("starting pprof server", "addr", pprofAddr)
			srv := &http.Server{ // #nosec G112 -- internal-only pprof port
				Addr:         pprofAddr,
				Handler:      http.DefaultServeMux,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("pprof server error", "error", err)
			}
		})
	}
}

func serve(cfg *config.Config) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	md := markdown.New()
	store, idx, err := loadIndex(startCtx, cfg, md)
	if err != nil {
		return err
	}

	pages, err := loadContent(cfg.Content.Path, md)
	if err != nil {
		return err
	}

	rdb, err := redis.New(startCtx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	client := upstream.New(cfg.API.URL, cfg.Issues.URL, cfg.API.Timeout)
	client.UserAgent = "sanctions-web/" + version

	handler, err := web.NewHandler(catalog.New(idx, client), client, pages, web.Settings{
		BaseURL:       cfg.Server.BaseURL,
		SearchDataset: cfg.API.SearchDataset,
		SearchSchema:  cfg.API.SearchSchema,
		PageSize:      cfg.API.PageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pages: %w", err)
	}

	startSideServers(cfg)

	router, bgServices := api.NewRouter(cfg, api.Dependencies{
		Index:   idx,
		Pages:   handler,
		Storage: store,
		Redis:   rdb,
		Build:   api.BuildInfo{Version: version, Commit: commit, BuildDate: buildDate},
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"public_url", cfg.Server.PublicURL("/"),
			"storage_backend", cfg.Storage.DefaultBackend,
			"api_url", cfg.API.URL,
			"tls", cfg.Security.TLS.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		bgServices.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("shutting down server")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}
