// framedb_bench drives a paced random page workload through a buffer pool
// over a real heap file and reports the pool counters. It exists to exercise
// the full stack (config, logging, telemetry, disk manager, pool) outside of
// the unit tests.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/framedb/framedb/config"
	"github.com/framedb/framedb/core/buffer"
	"github.com/framedb/framedb/core/storage/disk"
	"github.com/framedb/framedb/core/storage/page"
	"github.com/framedb/framedb/pkg/logger"
	"github.com/framedb/framedb/pkg/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (defaults apply when empty)")
		dataDir    = flag.String("dir", "", "data directory (a temp dir when empty)")
		numPages   = flag.Int("pages", 256, "pages to allocate before the read/write phase")
		numOps     = flag.Int("ops", 10000, "fetch/unpin operations to run")
		opsPerSec  = flag.Float64("rate", 5000, "operation pacing, ops per second")
		dirtyFrac  = flag.Float64("dirty", 0.25, "fraction of fetches that modify the page")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()
	runID := uuid.NewString()
	zlog = zlog.With(zap.String("run_id", runID))

	tel, telShutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		zlog.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer telShutdown(context.Background())

	dir := *dataDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "framedb-bench-")
		if err != nil {
			zlog.Fatal("failed to create temp dir", zap.Error(err))
		}
		defer os.RemoveAll(dir)
	}
	dbPath := filepath.Join(dir, "bench.db")

	dm, err := disk.Open(dbPath, cfg.Pool.PageSize, true, zlog)
	if err != nil {
		zlog.Fatal("failed to open heap file", zap.Error(err))
	}
	defer dm.Close()

	pool, err := buffer.NewBufferPool(cfg.Pool, zlog, tel.Meter)
	if err != nil {
		zlog.Fatal("failed to build buffer pool", zap.Error(err))
	}

	zlog.Info("starting workload",
		zap.Int("pages", *numPages),
		zap.Int("ops", *numOps),
		zap.Float64("rate", *opsPerSec),
		zap.Int("pool_size", cfg.Pool.PoolSize))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()

	// Phase 1: allocate and seed pages.
	pageIDs := make([]page.PageID, 0, *numPages)
	for i := 0; i < *numPages; i++ {
		id, pg, err := pool.NewPage(dm)
		if err != nil {
			zlog.Fatal("page allocation failed", zap.Int("n", i), zap.Error(err))
		}
		binary.LittleEndian.PutUint64(pg.Data(), uint64(id))
		if err := pool.UnpinPage(dm, id, true); err != nil {
			zlog.Fatal("unpin failed", zap.Error(err))
		}
		pageIDs = append(pageIDs, id)
	}

	// Phase 2: paced random fetches, some of them writing.
	limiter := rate.NewLimiter(rate.Limit(*opsPerSec), 1)
	ctx := context.Background()
	for i := 0; i < *numOps; i++ {
		if err := limiter.Wait(ctx); err != nil {
			zlog.Fatal("rate limiter interrupted", zap.Error(err))
		}

		id := pageIDs[rng.Intn(len(pageIDs))]
		pg, err := pool.FetchPage(dm, id)
		if err != nil {
			zlog.Fatal("fetch failed", zap.Uint64("page_id", uint64(id)), zap.Error(err))
		}
		if got := page.PageID(binary.LittleEndian.Uint64(pg.Data())); got != id {
			zlog.Fatal("page content mismatch",
				zap.Uint64("want", uint64(id)), zap.Uint64("got", uint64(got)))
		}

		dirty := rng.Float64() < *dirtyFrac
		if dirty {
			binary.LittleEndian.PutUint64(pg.Data()[8:], rng.Uint64())
		}
		if err := pool.UnpinPage(dm, id, dirty); err != nil {
			zlog.Fatal("unpin failed", zap.Error(err))
		}
	}

	if err := pool.FlushFile(dm); err != nil {
		zlog.Fatal("flush failed", zap.Error(err))
	}
	if err := pool.Close(); err != nil {
		zlog.Error("pool close reported an error", zap.Error(err))
	}

	stats := pool.Stats()
	zlog.Info("workload complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("reads", stats.Reads),
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Uint64("evictions", stats.Evictions),
		zap.Uint64("write_backs", stats.WriteBacks),
		zap.Float64("hit_ratio", stats.HitRatio()))
}
