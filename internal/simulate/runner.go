package simulate

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/wanistats/internal/app"
	"github.com/example/wanistats/internal/domain/types"
	"github.com/example/wanistats/internal/export"
	"github.com/example/wanistats/pkg/logger"
)

const (
	pollInterval        = 50 * time.Millisecond
	stormReadsPerWorker = 200
	directoryPermission = 0750
	stopTimeout         = 30 * time.Second
)

func apiKeyFor(username string) string { return "key-" + username }

// Run executes the simulation: seed synthetic accounts through the
// refresh pipeline, hammer the cached read path, verify every report
// against its source records and optionally export the workbooks.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Users <= 0 || cfg.Assignments <= 0 || cfg.Reviews <= 0 {
		return fmt.Errorf("users, assignments and reviews must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	stats := &Stats{StartTime: time.Now()}

	log.Printf("🚀 Starting statistics simulation")
	logger.Get().Info(ctx, "simulation configuration",
		logger.Int("users", cfg.Users),
		logger.Int("assignments", cfg.Assignments),
		logger.Int("reviews", cfg.Reviews),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", cfg.Seed),
	)

	// Step 1: Generate the shared catalogue and one dataset per account.
	log.Printf("🔍 Step 1: Generating %d synthetic accounts...", cfg.Users)
	rng := rand.New(rand.NewSource(cfg.Seed))
	catalogue := buildCatalogue(cfg.Assignments, rng)

	datasets := make(map[string]*dataset, cfg.Users)
	usernames := make([]string, 0, cfg.Users)
	for i := 0; i < cfg.Users; i++ {
		username := fmt.Sprintf("user-%03d", i+1)
		datasets[username] = buildDataset(username, i, catalogue, cfg, rng)
		usernames = append(usernames, username)
		stats.UsersSeeded++
		stats.RecordsSeeded += datasets[username].recordCount()
	}
	log.Printf("✅ Generated %d records across %d accounts", stats.RecordsSeeded, stats.UsersSeeded)

	// Step 2: Start the service against a scratch database.
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), fmt.Sprintf("wanistats_sim_%d.db", time.Now().UnixNano()))
		defer func() { _ = os.Remove(dbPath) }()
	}
	log.Printf("🔍 Step 2: Starting service (db: %s, workers: %d)...", dbPath, cfg.Workers)

	svc := app.New(
		app.WithDBPath(dbPath),
		app.WithWorkerCount(cfg.Workers),
		app.WithQueueSize(max(cfg.Users*2, 16)),
		app.WithSyncWindow(time.Hour),
		app.WithClientFactory(func(apiKey string) app.Client {
			return &memoryClient{data: datasets[strings.TrimPrefix(apiKey, "key-")]}
		}),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		// The run context may already be expired when cleanup runs.
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		svc.Stop(stopCtx)
	}()

	// Step 3: Queue one refresh per account.
	log.Printf("🔍 Step 3: Queueing %d refreshes...", len(usernames))
	for _, username := range usernames {
		if _, err := svc.EnqueueRefresh(ctx, username, apiKeyFor(username)); err != nil {
			return fmt.Errorf("enqueue %s: %w", username, err)
		}
	}

	// Step 4: Wait until every account has a complete report.
	log.Printf("🔍 Step 4: Waiting for reports...")
	reports, err := awaitReports(ctx, svc, usernames, datasets)
	if err != nil {
		return err
	}
	stats.ReportsComputed = len(reports)
	log.Printf("✅ All %d reports computed", len(reports))

	// Step 5: Concurrent read storm against the cached path.
	log.Printf("🔍 Step 5: Issuing %d concurrent reads...", cfg.Workers*stormReadsPerWorker)
	reads, failures := stormReports(ctx, svc, usernames, cfg.Workers)
	stats.ReadsIssued = reads
	if failures > 0 {
		log.Printf("⚠️  %d of %d concurrent reads failed", failures, reads)
	} else {
		log.Printf("✅ All %d concurrent reads served", reads)
	}

	// Step 6: Verify each report against its source records.
	log.Printf("🔍 Step 6: Verifying reports against source records...")
	violations := failures
	for _, username := range usernames {
		found := verifyReport(username, datasets[username], reports[username])
		for _, v := range found {
			log.Printf("⚠️  %s", v)
		}
		violations += len(found)
	}
	stats.Violations = violations
	if violations == 0 {
		log.Printf("✅ All reports consistent with their source records")
	}

	if cfg.Verbose {
		displayReportSummaries(usernames, reports)
	}

	// Step 7: Export the workbooks when requested.
	if cfg.ExportDir != "" {
		log.Printf("📤 Step 7: Exporting workbooks to %s...", cfg.ExportDir)
		written, err := exportReports(ctx, cfg.ExportDir, usernames, reports)
		stats.ExportsWritten = written
		if err != nil {
			return fmt.Errorf("export workbooks: %w", err)
		}
		log.Printf("✅ Wrote %d workbooks", written)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.Violations > 0 {
		return fmt.Errorf("%d violations detected", stats.Violations)
	}
	log.Printf("🏆 Simulation completed successfully in %v", stats.Duration.Round(time.Millisecond))
	return nil
}

// awaitReports polls the read path until every account has a complete
// report. An account is unknown until its first sync lands and its
// cached report may cover a half-finished sync, so polls accept a
// report only once its totals match the seeded dataset.
func awaitReports(ctx context.Context, svc *app.Service, usernames []string, datasets map[string]*dataset) (map[string]*types.Report, error) {
	reports := make(map[string]*types.Report, len(usernames))
	for len(reports) < len(usernames) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("waiting for %d of %d reports: %w", len(usernames)-len(reports), len(usernames), err)
		}
		for _, username := range usernames {
			if _, ok := reports[username]; ok {
				continue
			}
			report, err := svc.Stats(ctx, username)
			if err != nil || !complete(datasets[username], report) {
				continue
			}
			reports[username] = report
		}
		if len(reports) < len(usernames) {
			time.Sleep(pollInterval)
		}
	}
	return reports, nil
}

// complete reports whether the report covers the full dataset.
func complete(d *dataset, r *types.Report) bool {
	if r.LevelProgressions == nil || r.Assignments == nil || r.Reviews == nil || len(r.Partial) > 0 {
		return false
	}
	return r.LevelProgressions.Totals.Total == len(d.progressions) &&
		r.Assignments.Totals.Total == len(d.assignments) &&
		r.Reviews.Totals.Total == len(d.reviews)
}

// stormReports issues concurrent reads so the report cache and the
// per-user computation guard see real contention.
func stormReports(ctx context.Context, svc *app.Service, usernames []string, workers int) (reads, failures int) {
	var failed atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < stormReadsPerWorker; i++ {
				username := usernames[(offset+i)%len(usernames)]
				if _, err := svc.Stats(ctx, username); err != nil {
					failed.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
	return workers * stormReadsPerWorker, int(failed.Load())
}

func exportReports(ctx context.Context, dir string, usernames []string, reports map[string]*types.Report) (int, error) {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}
	written := 0
	for _, username := range usernames {
		report := reports[username]
		book, err := export.Workbook(report)
		if err != nil {
			return written, fmt.Errorf("render workbook for %s: %w", username, err)
		}
		path := filepath.Join(dir, export.Filename(username, report.ComputedAt))
		if err := writeWorkbook(book, path); err != nil {
			return written, err
		}
		written++
		logger.Get().Info(ctx, "workbook written", logger.String("path", path))
	}
	return written, nil
}

func writeWorkbook(book *export.Book, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := book.Write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func displayReportSummaries(usernames []string, reports map[string]*types.Report) {
	for _, username := range usernames {
		r := reports[username]
		log.Printf("   📊 %s: level %d, %d progressions, %d assignments, %d reviews",
			username, r.User.Level,
			r.LevelProgressions.Totals.Total,
			r.Assignments.Totals.Total,
			r.Reviews.Totals.Total)
	}
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	log.Printf("📊 Final simulation statistics:")
	logger.Get().Info(ctx, "simulation finished",
		logger.Int("usersSeeded", stats.UsersSeeded),
		logger.Int("recordsSeeded", stats.RecordsSeeded),
		logger.Int("reportsComputed", stats.ReportsComputed),
		logger.Int("readsIssued", stats.ReadsIssued),
		logger.Int("exportsWritten", stats.ExportsWritten),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration),
	)
}
