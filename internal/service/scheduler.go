package service

import (
	"context"
	"errors"
	"sync"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/pkg/code"
	"github.com/notedapp/noted-sync/pkg/logger"
	"github.com/notedapp/noted-sync/pkg/workerpool"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// maxConcurrentAccounts bounds parallel runs across accounts; runs for the
// same account are serialized by the engine itself.
const maxConcurrentAccounts = 4

// Scheduler triggers a sync run for every connected account on a cron
// schedule.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	sync   SyncService
	creds  domain.CredentialRepository
	pool   *workerpool.Pool
	logger *zap.Logger
}

// NewScheduler creates Scheduler instance
func NewScheduler(spec string, syncService SyncService, creds domain.CredentialRepository, lg *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		sync:   syncService,
		creds:  creds,
		pool:   workerpool.New(maxConcurrentAccounts, lg),
		logger: lg,
	}
}

// Start registers the schedule and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runAll); err != nil {
		return code.ErrConfigInvalid.WithDetails("sync.schedule: " + err.Error())
	}
	s.cron.Start()
	s.logger.Info("sync scheduler started", zap.String("schedule", s.spec))
	return nil
}

// Stop halts the schedule and waits for an in-flight run, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.pool.Close()
	s.logger.Info("sync scheduler stopped")
}

// RunAll syncs every connected account once. Accounts run concurrently on
// the pool; a per-account failure is logged and never blocks the others.
func (s *Scheduler) RunAll(ctx context.Context) {
	creds, err := s.creds.List(ctx)
	if err != nil {
		s.logger.Error("listing accounts failed", zap.Error(err))
		return
	}
	if len(creds) == 0 {
		s.logger.Debug("no connected accounts, skipping sync")
		return
	}
	var wg sync.WaitGroup
	for _, c := range creds {
		account := c.Account
		wg.Add(1)
		err := s.pool.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			s.runOne(ctx, account)
		})
		if err != nil {
			wg.Done()
			s.logger.Warn("sync not scheduled",
				zap.String(logger.FieldAccount, account), zap.Error(err))
		}
	}
	wg.Wait()
}

func (s *Scheduler) runOne(ctx context.Context, account string) {
	result, err := s.sync.Run(ctx, account)
	if err != nil {
		if errors.Is(err, code.ErrAlreadySyncing) {
			s.logger.Debug("sync already running",
				zap.String(logger.FieldAccount, account))
			return
		}
		s.logger.Error("sync run failed",
			zap.String(logger.FieldAccount, account),
			zap.Error(err))
		return
	}
	for _, f := range result.Failures {
		s.logger.Warn("note sync failed",
			zap.String(logger.FieldAccount, account),
			zap.String(logger.FieldNoteID, f.LocalID),
			zap.String(logger.FieldRemoteID, f.RemoteID),
			zap.String(logger.FieldError, f.Reason))
	}
}

func (s *Scheduler) runAll() {
	s.RunAll(context.Background())
}
