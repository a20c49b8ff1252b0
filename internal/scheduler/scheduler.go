// Package scheduler fires the maintenance jobs implemented in
// internal/engine at fixed wall-clock times, plus a light pass on startup
// and every 50 writes (spec C9). It holds no locks while a job runs: each
// job commits through its own call into the engine/storage layer.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/scrypster/exocortex/internal/backup"
	"github.com/scrypster/exocortex/internal/engine"
	"github.com/scrypster/exocortex/internal/logging"
	"github.com/scrypster/exocortex/internal/settings"
	"github.com/scrypster/exocortex/pkg/types"
)

// clockTime is a fixed hour:minute the scheduler checks against wall time.
type clockTime struct {
	hour, minute int
}

func (c clockTime) matches(t time.Time) bool {
	return t.Hour() == c.hour && t.Minute() == c.minute
}

// job names a fixed-time maintenance task (spec C9's cron-like table). run
// is a method value of the form (*Scheduler).runX, whose call signature is
// func(*Scheduler, context.Context) error -- receiver first.
type job struct {
	name string
	at   clockTime
	run  func(s *Scheduler, ctx context.Context) error
}

var fixedJobs = []job{
	{"backup", clockTime{1, 30}, (*Scheduler).runBackup},
	{"consolidation", clockTime{2, 0}, (*Scheduler).runConsolidation},
	{"contradiction_detection", clockTime{2, 30}, (*Scheduler).runContradictionDetection},
	{"entity_backfill", clockTime{3, 0}, (*Scheduler).runEntityBackfill},
	{"importance_adjust", clockTime{3, 30}, (*Scheduler).runImportanceAdjust},
	{"archive", clockTime{4, 0}, (*Scheduler).runArchive},
	{"purge", clockTime{4, 30}, (*Scheduler).runPurge},
	{"graph_densify", clockTime{5, 0}, (*Scheduler).runGraphDensify},
	{"co_retrieval_link_build", clockTime{5, 30}, (*Scheduler).runCoRetrievalAndCleanup},
}

// GoldenQuerySource supplies the golden queries for the retrieval-regression
// job, decoupled from how they're persisted (flat file, settings, a future
// dedicated table).
type GoldenQuerySource func(ctx context.Context) ([]types.GoldenQuery, error)

// Config configures a Scheduler.
type Config struct {
	DBPath       string
	BackupDir    string
	GoldenQuery  GoldenQuerySource
	tickInterval time.Duration // test hook; defaults to a minute
}

// Scheduler ticks once a minute, running any fixed job whose clock time
// matches, and runs a light pass (importance + archive) on Start and every
// lightPassWriteInterval writes observed via OnMemoryWritten.
type Scheduler struct {
	engine *engine.Engine
	set    *settings.Store
	log    *logging.Logger
	cfg    Config

	mu         sync.Mutex
	writeCount int
	lastRunDay map[string]int // job name -> yday, so a job fires at most once/day
	stopCh     chan struct{}
}

const lightPassWriteInterval = 50

// New builds a Scheduler over an already-constructed Engine.
func New(e *engine.Engine, set *settings.Store, cfg Config) *Scheduler {
	if cfg.tickInterval <= 0 {
		cfg.tickInterval = time.Minute
	}
	return &Scheduler{
		engine:     e,
		set:        set,
		log:        logging.GetLogger("scheduler"),
		cfg:        cfg,
		lastRunDay: make(map[string]int),
		stopCh:     make(chan struct{}),
	}
}

// Start runs the light maintenance pass once, then blocks ticking until ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.runLightPass(ctx)

	ticker := time.NewTicker(s.cfg.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// Stop ends the scheduling loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// OnMemoryWritten should be wired to engine.Engine.SetOnMemoryCreated; every
// 50th call triggers the light maintenance pass (spec C9).
func (s *Scheduler) OnMemoryWritten(ctx context.Context) func(memoryID string) {
	return func(string) {
		s.mu.Lock()
		s.writeCount++
		due := s.writeCount >= lightPassWriteInterval
		if due {
			s.writeCount = 0
		}
		s.mu.Unlock()

		if due {
			s.runLightPass(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	yday := now.YearDay()
	for _, j := range fixedJobs {
		if !j.at.matches(now) {
			continue
		}
		s.mu.Lock()
		if s.lastRunDay[j.name] == yday {
			s.mu.Unlock()
			continue
		}
		s.lastRunDay[j.name] = yday
		s.mu.Unlock()

		if err := j.run(s, ctx); err != nil {
			s.log.LogError(j.name, err)
		} else {
			s.log.LogOperation(j.name)
		}
	}

	if s.cfg.GoldenQuery != nil && s.set.GetBool(ctx, "retrieval_regression.schedule_enabled", true) {
		s.maybeRunRegression(ctx, now, yday)
	}
}

// runLightPass is the startup/every-50-writes pass named in spec C9:
// importance adjust plus archive, nothing else (no backup, no consolidation
// — those stay on their fixed clock times).
func (s *Scheduler) runLightPass(ctx context.Context) {
	if _, err := s.engine.AdjustImportance(ctx, 5, 30); err != nil {
		s.log.LogError("light_pass_importance", err)
	}
	if _, err := s.engine.ArchiveStaleAndAbandoned(ctx); err != nil {
		s.log.LogError("light_pass_archive", err)
	}
}

func (s *Scheduler) runBackup(ctx context.Context) error {
	maxCount := s.set.GetInt(ctx, "backup.max_count", 30)
	copyTo, _, err := s.set.Get(ctx, "backup.copy_to")
	if err != nil {
		copyTo = ""
	}
	_, err = backup.Run(s.cfg.DBPath, s.cfg.BackupDir, maxCount, copyTo)
	return err
}

func (s *Scheduler) runConsolidation(ctx context.Context) error {
	_, err := s.engine.Consolidate(ctx, 0.75, 3)
	return err
}

func (s *Scheduler) runContradictionDetection(ctx context.Context) error {
	_, err := s.engine.DetectContradictions(ctx, 0.7, 500)
	return err
}

func (s *Scheduler) runEntityBackfill(ctx context.Context) error {
	_, err := s.engine.BackfillEntities(ctx, 1000)
	return err
}

func (s *Scheduler) runImportanceAdjust(ctx context.Context) error {
	_, err := s.engine.AdjustImportance(ctx, 5, 30)
	return err
}

func (s *Scheduler) runArchive(ctx context.Context) error {
	_, err := s.engine.ArchiveStaleAndAbandoned(ctx)
	return err
}

func (s *Scheduler) runPurge(ctx context.Context) error {
	_, err := s.engine.Purge(ctx)
	return err
}

func (s *Scheduler) runGraphDensify(ctx context.Context) error {
	_, err := s.engine.DensifyGraph(ctx, 3)
	return err
}

// runCoRetrievalAndCleanup builds co-retrieval links and prunes co-retrieval
// rows older than 60 days, per spec C9's combined 05:30 slot.
func (s *Scheduler) runCoRetrievalAndCleanup(ctx context.Context) error {
	if _, err := s.engine.BuildCoRetrievalLinks(ctx, 3, 200); err != nil {
		return err
	}
	return s.engine.PruneCoRetrievals(ctx, 60)
}

func (s *Scheduler) maybeRunRegression(ctx context.Context, now time.Time, yday int) {
	const name = "retrieval_regression"
	s.mu.Lock()
	if s.lastRunDay[name] == yday {
		s.mu.Unlock()
		return
	}
	hour := s.set.GetInt(ctx, "retrieval_regression.schedule_hour", 6)
	minute := s.set.GetInt(ctx, "retrieval_regression.schedule_minute", 0)
	if now.Hour() != hour || now.Minute() != minute {
		s.mu.Unlock()
		return
	}
	s.lastRunDay[name] = yday
	runID := name + "-" + now.Format("20060102")
	s.mu.Unlock()

	queries, err := s.cfg.GoldenQuery(ctx)
	if err != nil {
		s.log.LogError("retrieval_regression_load_queries", err)
		return
	}
	if _, err := s.engine.RunRetrievalRegression(ctx, runID, queries); err != nil {
		s.log.LogError("retrieval_regression", err)
		return
	}
	s.log.LogOperation("retrieval_regression", "run_id", runID)
}
