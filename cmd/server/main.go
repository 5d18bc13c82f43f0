package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/SbTchR/TimelineGenerator/internal/asset"
	"github.com/SbTchR/TimelineGenerator/internal/auth"
	"github.com/SbTchR/TimelineGenerator/internal/collab"
	"github.com/SbTchR/TimelineGenerator/internal/config"
	"github.com/SbTchR/TimelineGenerator/internal/db"
	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/export"
	mw "github.com/SbTchR/TimelineGenerator/internal/middleware"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
	"github.com/SbTchR/TimelineGenerator/internal/poster"
	"github.com/SbTchR/TimelineGenerator/internal/raster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	paper, err := pagination.PaperByName(cfg.Paper)
	if err != nil {
		slog.Error("paper size", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	queries := db.New(pool)

	authService := auth.NewService(queries, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	posterService := poster.NewService(queries)
	posterHandler := poster.NewHandler(posterService)

	hub := collab.NewHub(posterService.LoadDocument, posterService.SaveDocument)
	go hub.Run()

	assetHandler := asset.NewHandler(cfg.AssetDir)

	opts := engine.Options{Measurer: engine.DefaultMeasurer(), Paper: paper}
	var capturer export.Capturer
	switch cfg.CaptureBackend {
	case "raster":
		capturer = raster.New(opts.Measurer, assetHandler.Resolver())
	default:
		capturer = &export.ChromeCapturer{
			ExecPath: cfg.ChromePath,
			Resolve:  assetHandler.Resolver(),
			Timeout:  cfg.ExportTimeout,
		}
	}
	exporter := export.NewExporter(capturer, paper, assetHandler.Resolver())
	exportHandler := export.NewHandler(exporter, opts, posterService, poster.StatusFor)

	origins := mw.SplitOrigins(cfg.AllowedOrigins)

	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(origins))

	// Preflight for every route; CORS answers it.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Assets and stateless export are public so the playground works
	// without an account.
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST")
	r.PathPrefix(asset.URLPrefix).Handler(assetHandler.Serve()).Methods("GET")
	r.HandleFunc("/export/plan", exportHandler.PlanHandler).Methods("POST")
	r.HandleFunc("/export/{format}", exportHandler.ExportDocument).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/posters", posterHandler.List).Methods("GET")
	api.HandleFunc("/posters", posterHandler.Create).Methods("POST")
	api.HandleFunc("/posters/{posterId}", posterHandler.Get).Methods("GET")
	api.HandleFunc("/posters/{posterId}", posterHandler.Delete).Methods("DELETE")
	api.HandleFunc("/posters/{posterId}/document", posterHandler.GetDocument).Methods("GET")
	api.HandleFunc("/posters/{posterId}/document", posterHandler.PutDocument).Methods("PUT")
	api.HandleFunc("/posters/{posterId}/export/{format}", exportHandler.ExportPoster).Methods("POST")
	api.HandleFunc("/posters/{posterId}/invite", posterHandler.Invite).Methods("POST")
	api.HandleFunc("/posters/{posterId}/members", posterHandler.ListMembers).Methods("GET")
	api.HandleFunc("/posters/{posterId}/members/{userId}", posterHandler.RemoveMember).Methods("DELETE")
	api.HandleFunc("/assets/{assetId}", assetHandler.Delete).Methods("DELETE")

	r.HandleFunc("/ws/poster/{posterId}", collab.ServeWS(hub, wsAuthorizer(authService, posterService), wsOrigins(origins)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ExportTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Save open rooms before the pool closes.
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "capture", cfg.CaptureBackend, "paper", cfg.Paper)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func wsAuthorizer(authSvc *auth.Service, posters *poster.Service) collab.Authorizer {
	return func(r *http.Request, posterID string) (string, string, error) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			return "", "", fmt.Errorf("%w: missing token", collab.ErrUnauthorized)
		}
		userID, err := authSvc.ValidateToken(token)
		if err != nil {
			return "", "", fmt.Errorf("%w: invalid token", collab.ErrUnauthorized)
		}
		if err := posters.CheckMember(r.Context(), posterID, userID); err != nil {
			if errors.Is(err, poster.ErrNotMember) {
				return "", "", fmt.Errorf("%w: not a poster member", collab.ErrForbidden)
			}
			return "", "", err
		}
		user, err := authSvc.GetUser(r.Context(), userID)
		if err != nil {
			return "", "", fmt.Errorf("get user: %w", err)
		}
		return userID, user.DisplayName, nil
	}
}

// wsOrigins turns allowed origins into host patterns for the websocket
// origin check.
func wsOrigins(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
