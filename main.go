package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/db"
	"github.com/debemdeboas/newsroom/internal/editor"
	"github.com/debemdeboas/newsroom/internal/logger"
	"github.com/debemdeboas/newsroom/internal/notify"
	"github.com/debemdeboas/newsroom/internal/render"
	"github.com/debemdeboas/newsroom/internal/repository"
	"github.com/debemdeboas/newsroom/internal/repository/drafts"
	"github.com/debemdeboas/newsroom/internal/routes"
	"github.com/debemdeboas/newsroom/internal/sse"
	"github.com/debemdeboas/newsroom/internal/storage"
	"github.com/debemdeboas/newsroom/internal/upload"
	"github.com/debemdeboas/newsroom/internal/util/compression"
)

var clients = sse.NewSSEClients()

var mainLogger zerolog.Logger

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	config.LoadEnv()
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	setLoggers(logger.New(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		mainLogger.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	mainLogger = l
	config.SetLogger(l)
	db.SetLogger(l)
	editor.SetLogger(l)
	render.SetLogger(l)
	repository.SetLogger(l)
	sse.SetLogger(l)
	storage.SetLogger(l)
	upload.SetLogger(l)
}

// app is everything the HTTP server needs.
type app struct {
	hub      *editor.Hub
	articles repository.ArticleRepository
	handler  http.Handler
	close    func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := render.SetRenderer(cfg.Editor.Renderer); err != nil {
		return nil, err
	}

	compressor, err := compression.ForName(cfg.Database.Compression)
	if err != nil {
		return nil, err
	}

	var conn db.DB
	if cfg.Content.Source == "db" || cfg.Editor.Drafts == "db" {
		sqlite := db.NewSQLite(cfg.Database.Path)
		if err := sqlite.InitDB(); err != nil {
			return nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
		}
		conn = sqlite
	}

	interval := time.Duration(cfg.Content.ReloadInterval) * time.Second
	var articles repository.ArticleRepository
	switch cfg.Content.Source {
	case "fs":
		articles = repository.NewFSArticleRepository(cfg.Content.Dir, interval)
	case "db":
		articles = repository.NewDBArticleRepository(conn, compressor, interval)
	default:
		return nil, fmt.Errorf("unknown content source %q", cfg.Content.Source)
	}
	if err := articles.Init(); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInitializingArticles, err)
	}

	var draftRepo drafts.Repository = drafts.NewMemoryRepository()
	if cfg.Editor.Drafts == "db" {
		draftRepo = drafts.NewDBRepository(conn, compressor)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	previews, err := upload.NewPreviewStore(cfg.Upload.PreviewCapacity)
	if err != nil {
		return nil, err
	}

	hub := editor.NewHub(editor.HubConfig{
		Articles: articles,
		Drafts:   draftRepo,
		Notifier: notify.Multi{
			notify.Log{Logger: mainLogger},
			notify.SSE{Clients: clients},
		},
		Uploads: &editor.Uploads{
			Compressor: upload.NewCompressor(cfg.Upload),
			Previews:   previews,
			Store:      store,
			Prefix:     cfg.Upload.Prefix,
			Keywords:   cfg.Upload.Keywords,
		},
		Autosave:    cfg.Editor.AutosaveDrafts,
		MaxSessions: cfg.Editor.MaxSessions,
	})
	articles.SetReloadNotifier(hub.ArticleChanged)

	mux := http.NewServeMux()
	mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, config.CTypeText)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /"))
	})
	if fs, ok := store.(*storage.FSStore); ok {
		base := strings.TrimRight(cfg.Storage.PublicBaseURL, "/") + "/"
		if strings.HasPrefix(base, "/") {
			mux.Handle("GET "+base, http.StripPrefix(base, http.FileServer(http.Dir(fs.Dir()))))
		}
	}
	editor.NewHandler(hub, previews, clients, cfg.Editor.SyntaxTheme, cfg.Upload.MaxUploadBytes).Register(mux)

	return &app{
		hub:      hub,
		articles: articles,
		handler:  noCache(secureHeaders(mux)),
		close: func() {
			if conn != nil {
				conn.Close()
			}
		},
	}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	go a.articles.ReloadArticles(ctx)
	go pruneSessions(ctx, a.hub, time.Duration(cfg.Editor.SessionIdleMinutes)*time.Minute)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		mainLogger.Info().Str("addr", srv.Addr).Str("site", cfg.Site.Name).Msg("Newsroom editor listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	mainLogger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func pruneSessions(ctx context.Context, hub *editor.Hub, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(min(maxIdle, time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := hub.Prune(maxIdle); n > 0 {
				mainLogger.Info().Int("sessions", n).Msg("Closed idle editor sessions")
			}
		}
	}
}

func noCache(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		h.ServeHTTP(w, r)
	})
}

func secureHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")

		h.ServeHTTP(w, r)
	})
}
