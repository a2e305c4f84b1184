package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/schemacache"
)

// DefaultSyncSchedule checks every active source at the top of each hour.
const DefaultSyncSchedule = "0 * * * *"

// syncCheckTimeout bounds one source's connection check.
const syncCheckTimeout = 10 * time.Second

// SyncScheduler periodically checks every active data source. Reachable
// sources get LastSyncAt bumped and their cached schema dropped, so the next
// question sees fresh columns.
type SyncScheduler struct {
	store    Storage
	adapters datasource.AdapterFactory
	schemas  *schemacache.Cache
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewSyncScheduler registers the sync job on schedule, a standard five-field
// cron expression. The job does not run until Start.
func NewSyncScheduler(
	schedule string,
	store Storage,
	adapters datasource.AdapterFactory,
	schemas *schemacache.Cache,
	logger *zap.Logger,
) (*SyncScheduler, error) {
	logger = logger.Named("sync")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))

	s := &SyncScheduler{
		store:    store,
		adapters: adapters,
		schemas:  schemas,
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.SyncAll(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *SyncScheduler) Start() {
	s.logger.Info("Starting data source sync", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running sync to finish or ctx to end.
func (s *SyncScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("sync still running at shutdown")
	}
}

// SyncAll checks every active source once and returns how many were reachable.
func (s *SyncScheduler) SyncAll(ctx context.Context) int {
	sources, err := s.store.ListActiveDataSources(ctx)
	if err != nil {
		s.logger.Error("failed to list active data sources", zap.Error(err))
		return 0
	}

	synced := 0
	for _, ds := range sources {
		adapter, err := s.adapters.Get(ds.Type)
		if err != nil {
			s.logger.Warn("no adapter for data source", zap.String("id", ds.ID.String()), zap.String("type", string(ds.Type)))
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, syncCheckTimeout)
		ok := adapter.ValidateConnection(checkCtx, ds.Config)
		cancel()
		if !ok {
			s.logger.Warn("data source unreachable", zap.String("id", ds.ID.String()), zap.String("name", ds.Name))
			continue
		}

		if err := s.store.MarkDataSourceSynced(ctx, ds.ID, s.now()); err != nil {
			s.logger.Error("failed to record sync", zap.String("id", ds.ID.String()), zap.Error(err))
			continue
		}
		s.schemas.Invalidate(ds.ID.String())
		synced++
	}

	s.logger.Info("Data source sync finished", zap.Int("active", len(sources)), zap.Int("synced", synced))
	return synced
}
