package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/animal.report/internal/api"
	"github.com/banshee-data/animal.report/internal/count"
	"github.com/banshee-data/animal.report/internal/db"
	"github.com/banshee-data/animal.report/internal/detect"
	"github.com/banshee-data/animal.report/internal/fsutil"
	"github.com/banshee-data/animal.report/internal/jobs"
	"github.com/banshee-data/animal.report/internal/monitoring"
	"github.com/banshee-data/animal.report/internal/report"
	"github.com/banshee-data/animal.report/internal/timeutil"
	"github.com/banshee-data/animal.report/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode (mock engine unless -engine is set)")
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", "results.db", "Path to the results database")
	uploadsDir    = flag.String("uploads", "uploads", "Directory for uploaded videos")
	resultsDir    = flag.String("results", "results", "Directory for per-run output artifacts")
	engineCmd     = flag.String("engine", "", "External tracker command (empty: mock engine)")
	fixturesPath  = flag.String("fixtures", "", "Detection log replayed by the mock engine")
	migrationsDir = flag.String("migrations", "migrations", "Directory with SQL migration files")
	migrateCmd    = flag.String("migrate", "", "Run a migration command (up|down|version) and exit")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("animal.report %s\n", version.String())
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if *migrateCmd != "" {
		runMigration(database, *migrateCmd)
		return
	}

	engine, err := buildEngine()
	if err != nil {
		log.Fatalf("Failed to configure engine: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs := fsutil.OSFileSystem{}
	metrics := monitoring.NewMetrics()
	runner := jobs.NewRunner(database, engine, report.NewWriter(fs), timeutil.RealClock{}, metrics)

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(ctx, runner, database, metrics, fs, *uploadsDir).ServeMux()
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("animal.report %s listening on %s", version.Version, *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		// Let in-flight counting jobs finish before the process exits.
		runner.Wait()
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// buildEngine picks the detection engine from flags. An external tracker
// command wins; otherwise dev mode gets a mock engine, replaying a
// recorded detection log when one is configured.
func buildEngine() (detect.Engine, error) {
	if *engineCmd != "" {
		return detect.NewExecEngine(*engineCmd, *resultsDir), nil
	}
	if !*devMode {
		return nil, fmt.Errorf("no -engine command configured (use -dev for the mock engine)")
	}

	frames := devFrames()
	if *fixturesPath != "" {
		f, err := os.Open(*fixturesPath)
		if err != nil {
			return nil, fmt.Errorf("open fixtures: %w", err)
		}
		defer f.Close()

		frames, err = detect.ReadLog(f)
		if err != nil {
			return nil, fmt.Errorf("parse fixtures: %w", err)
		}
	}
	return detect.NewMockEngine(*resultsDir, frames...), nil
}

// devFrames is the scripted herd the mock engine replays when dev mode
// runs without a fixtures file.
func devFrames() [][]count.Detection {
	return [][]count.Detection{
		{{Class: "cow", TrackID: 1, HasTrack: true, Confidence: 0.91}},
		{{Class: "cow", TrackID: 1, HasTrack: true, Confidence: 0.88},
			{Class: "sheep", TrackID: 2, HasTrack: true, Confidence: 0.74}},
		{{Class: "sheep", TrackID: 2, HasTrack: true, Confidence: 0.79},
			{Class: "sheep", TrackID: 3, HasTrack: true, Confidence: 0.66}},
	}
}

func runMigration(database *db.DB, cmd string) {
	switch cmd {
	case "up":
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Printf("migrations applied")
	case "down":
		if err := database.MigrateDown(*migrationsDir); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Printf("migrations rolled back")
	case "version":
		v, dirty, err := database.MigrateVersion(*migrationsDir)
		if err != nil {
			log.Fatalf("migrate version: %v", err)
		}
		log.Printf("schema version %d (dirty=%v)", v, dirty)
	default:
		log.Fatalf("unknown migrate command %q (want up, down or version)", cmd)
	}
}
