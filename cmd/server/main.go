package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "lockstep/internal/persistence/log"
	"lockstep/internal/persistence/pathdb"

	"lockstep/internal/nav"
	"lockstep/internal/sched"
	"lockstep/internal/transport/ws"
	"lockstep/internal/tuning"
	"lockstep/internal/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		prebake    = flag.Bool("prebake", true, "pre-bake paths between named locations at startup")
		disableLog = flag.Bool("disable_log", false, "disable durable tick/result logs")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	store, err := pathdb.Open(filepath.Join(*dataDir, "paths.db"))
	if err != nil {
		logger.Fatalf("open path store: %v", err)
	}
	defer store.Close()

	paths := nav.NewCache(nav.CacheConfig{
		MemoryCapacity: tune.PathCache.MemoryCapacity,
		Generator: nav.GeneratorConfig{
			SectorSize:     tune.PathCache.SectorSize,
			AngleThreshold: tune.PathCache.AngleThresholdRad,
			MaxWaypoints:   tune.PathCache.MaxWaypoints,
		},
	}, store, logger)

	if *prebake && len(tune.NamedLocations) > 0 {
		named := make(map[string]nav.Point3, len(tune.NamedLocations))
		for name, p := range tune.NamedLocations {
			named[name] = nav.Point3{X: p[0], Y: p[1], Z: p[2]}
		}
		paths.PreBakeCommonPaths(named)
	}

	st := world.NewState()

	var sink sched.Sink
	if !*disableLog {
		sl := persistlog.NewSchedLogger(*dataDir)
		defer sl.Close()
		sink = sl
	}

	scheduler, err := sched.New(sched.Config{
		TickRateHz:     tune.TickRateHz,
		BatchSize:      tune.BatchSize,
		SubmitterCap:   tune.SubmitterCap,
		ExecTimeout:    time.Duration(tune.ExecTimeoutMs) * time.Millisecond,
		ConflictRadius: tune.ConflictRadius,
		TunerInterval:  time.Duration(tune.TunerIntervalSec) * time.Second,
		TunerThreshold: time.Duration(tune.TunerThresholdMs) * time.Millisecond,
	}, st, sched.DefaultExecutors(st, paths), nil, sink, logger)
	if err != nil {
		logger.Fatalf("scheduler: %v", err)
	}

	wsServer := ws.NewServer(scheduler, st, paths, logger)
	scheduler.SetNotifier(wsServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("scheduler exited: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := scheduler.GetStatistics()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pending_count":   stats.PendingCount,
			"processed_total": stats.ProcessedTotal,
			"avg_latency_ms":  stats.AvgLatencyMs,
			"tick_rate_hz":    stats.TickRateHz,
			"batch_size":      stats.BatchSize,
			"path_cache_mem":  paths.MemoryLen(),
		})
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	httpServer := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (ws at /v1/ws)", strings.TrimSpace(*addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	scheduler.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	cancel()
}
