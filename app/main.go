package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/lawnmap/app/api"
	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/cfg"
	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/source"
	"github.com/lysyi3m/lawnmap/app/tasks"
	"github.com/lysyi3m/lawnmap/app/view"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Lawnmap", "version", cfg.GetVersion(), "port", appCfg.Port, "db_driver", appCfg.DBDriver)

	db, err := database.NewConnection(appCfg.DBDriver, appCfg.DBDSN)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	categories, err := catalog.LoadCategories(appCfg.CategoriesFile)
	if err != nil {
		slog.Error("Failed to load categories", "path", appCfg.CategoriesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Categories loaded", "count", len(categories.Keys()))

	placeRepo := database.NewPlaceRepository(db)
	leadRepo := database.NewLeadRepository(db)
	proposalRepo := database.NewProposalRepository(db)
	eventRepo := database.NewEventRepository(db)

	httpClient := &http.Client{Timeout: 60 * time.Second}

	remote := source.NewRemoteSource(appCfg.RemoteCatalogURL, httpClient, appCfg.UserAgent)
	chain := source.NewChain(
		source.NewDatabaseSource(placeRepo, time.Local),
		source.NewFileSource(appCfg.CatalogFile),
		remote,
	)

	directory := view.NewDirectory(categories)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), time.Minute)
	if _, err := directory.Reload(loadCtx, chain); err != nil {
		slog.Warn("Starting with an empty catalog", "sources", chain.Sources())
	}
	cancelLoad()

	sessions := view.NewRegistry(directory)

	scheduler := tasks.NewScheduler(appCfg.WorkerCount, time.Duration(appCfg.SchedulerInterval)*time.Second)
	registerJobs(scheduler, appCfg, directory, chain, sessions, placeRepo, eventRepo, httpClient)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(api.Deps{
		Directory:  directory,
		Sessions:   sessions,
		Catalog:    chain,
		Remote:     remote,
		Places:     placeRepo,
		Leads:      leadRepo,
		Proposals:  proposalRepo,
		Events:     eventRepo,
		Scheduler:  scheduler,
		SeedSecret: appCfg.SeedSecret,
		PlacesFile: appCfg.PlacesFile,
		EventsFile: appCfg.EventsFile,
	})
	router := api.NewServer(handler, api.ServerOptions{
		APIAccessKey: appCfg.APIAccessKey,
		WebDir:       appCfg.WebDir,
		Debug:        appCfg.Debug,
	})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr, "base_url", appCfg.BaseUrl)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}

func registerJobs(scheduler *tasks.Scheduler, appCfg *cfg.Cfg, directory *view.Directory, chain *source.Chain,
	sessions *view.Registry, placeRepo *database.PlaceRepository, eventRepo *database.EventRepository, httpClient *http.Client) {
	scheduler.Register(tasks.Job{
		Type:     tasks.TaskTypeRefreshCatalog,
		Interval: appCfg.GetCatalogRefreshInterval(),
		New: func() tasks.TaskInterface {
			return tasks.NewRefreshCatalogTask(directory, chain)
		},
	})

	scheduler.Register(tasks.Job{
		Type:      tasks.TaskTypeCheckLinks,
		Interval:  appCfg.GetLinkCheckInterval(),
		AtStartup: true,
		New: func() tasks.TaskInterface {
			return tasks.NewCheckLinksTask(placeRepo, httpClient, appCfg.UserAgent,
				appCfg.LinkCheckMax, appCfg.LinkCheckConcurrency, appCfg.GetLinkCheckInterval())
		},
	})

	if appCfg.EnrichMax > 0 {
		scheduler.Register(tasks.Job{
			Type:      tasks.TaskTypeEnrichPlaces,
			Interval:  appCfg.GetLinkCheckInterval(),
			AtStartup: true,
			New: func() tasks.TaskInterface {
				return tasks.NewEnrichPlacesTask(placeRepo, httpClient, appCfg.UserAgent, appCfg.EnrichMax)
			},
		})
	}

	if len(appCfg.EventFeeds) > 0 {
		scheduler.Register(tasks.Job{
			Type:      tasks.TaskTypeImportEvents,
			Interval:  appCfg.GetCatalogRefreshInterval(),
			AtStartup: true,
			New: func() tasks.TaskInterface {
				return tasks.NewImportEventsTask(eventRepo, httpClient, appCfg.UserAgent, appCfg.EventFeeds)
			},
		})
	}

	idle := appCfg.GetSessionIdleTimeout()
	scheduler.Register(tasks.Job{
		Type:     tasks.TaskTypeSweepSessions,
		Interval: time.Minute,
		New: func() tasks.TaskInterface {
			return tasks.NewSweepSessionsTask(sessions, idle)
		},
	})
}
