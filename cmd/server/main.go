package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/you/go-globe-planner/internal/auth"
	"github.com/you/go-globe-planner/internal/config"
	"github.com/you/go-globe-planner/internal/httpx"
	"github.com/you/go-globe-planner/internal/obs"
	"github.com/you/go-globe-planner/internal/providers"
	"github.com/you/go-globe-planner/internal/service"
	"github.com/you/go-globe-planner/internal/users"
)

func main() {

	// Loading config
	cfg := config.Load()

	observer := obs.NewLogObserver(log.New(os.Stdout, "", log.LstdFlags))

	// Upstream clients; Amadeus serves tokens, airport lookup and flight search
	amadeus := providers.NewAmadeus(cfg, observer)
	geocoder := providers.NewOpenCage(cfg, observer)

	var tokenCache *service.TokenCache
	if cfg.AmadeusTokenCache {
		tokenCache = service.NewTokenCache()
	}

	planner := service.NewPlanner(service.Dependencies{
		Geocoder:   geocoder,
		Tokens:     amadeus,
		Resolver:   amadeus,
		Searcher:   amadeus,
		TokenCache: tokenCache,
		Observer:   observer,
		Timeout:    cfg.PlanTimeout,
	})

	// Accounts live in Postgres when configured, in memory otherwise
	var store users.Store
	if cfg.DatabaseURL != "" {
		db, err := users.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()

		pg := users.NewPostgresStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pg.InitSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		store = pg
	} else {
		log.Println("DATABASE_URL not set, keeping users in memory")
		store = users.NewMemoryStore()
	}

	authSvc := auth.NewService(cfg, store)

	// Creation of HTTP server
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpx.NewRouter(planner, authSvc, store),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Running http server on a secondary thread
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			log.Println("TLS enabled")
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
