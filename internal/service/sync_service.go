package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/internal/dto"
	"github.com/notedapp/noted-sync/pkg/code"
	"github.com/notedapp/noted-sync/pkg/logger"
	"github.com/notedapp/noted-sync/pkg/timex"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GatewayFactory builds an authenticated gateway for one account.
type GatewayFactory func(account string) domain.NoteGateway

// SyncService runs bidirectional reconciliation between the local store and
// the remote store of one account.
type SyncService interface {
	// Run executes one full sync pass. A per-note failure is recorded in
	// the result and never aborts the rest of the batch; the returned error
	// is non-nil only for run-level outcomes (already running, auth
	// revoked, no connectivity, run timed out or cancelled).
	Run(ctx context.Context, account string) (*dto.SyncResult, error)
}

// SyncOptions tunes a sync run.
type SyncOptions struct {
	// SkewTolerance is the window within which two timestamps compare
	// equal, absorbing clock skew between devices.
	SkewTolerance time.Duration
	// RunTimeout bounds one whole run.
	RunTimeout time.Duration
}

type syncService struct {
	local    domain.LocalStore
	mappings domain.MappingRepository
	gateways GatewayFactory
	logger   *zap.Logger
	opts     SyncOptions

	runningMu sync.Mutex
	running   map[string]bool
}

// NewSyncService creates SyncService instance
func NewSyncService(
	local domain.LocalStore,
	mappings domain.MappingRepository,
	gateways GatewayFactory,
	opts SyncOptions,
	lg *zap.Logger,
) SyncService {
	if opts.SkewTolerance <= 0 {
		opts.SkewTolerance = 2 * time.Second
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 5 * time.Minute
	}
	return &syncService{
		local:    local,
		mappings: mappings,
		gateways: gateways,
		logger:   lg,
		opts:     opts,
		running:  make(map[string]bool),
	}
}

func (s *syncService) tryLock(account string) bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	if s.running[account] {
		return false
	}
	s.running[account] = true
	return true
}

func (s *syncService) unlock(account string) {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	delete(s.running, account)
}

// runState carries the per-run bookkeeping the partition walk shares.
type runState struct {
	result    *dto.SyncResult
	gw        domain.NoteGateway
	skew      int64
	attempted int
	unavail   int
	aborted   error
	settled   map[string]bool // local ids the remote scan already resolved
}

func (st *runState) fail(localID, remoteID string, err error) {
	st.result.Failed++
	st.result.Failures = append(st.result.Failures, dto.SyncFailure{
		LocalID:  localID,
		RemoteID: remoteID,
		Reason:   err.Error(),
	})
}

// abortOnCtx turns a tripped run deadline or an external cancellation into
// the run-level outcome instead of a trail of per-note failures.
func (st *runState) abortOnCtx(err error) {
	if st.aborted != nil {
		return
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		st.aborted = code.ErrSyncTimeout.WithDetails(st.result.Account)
	case errors.Is(err, context.Canceled):
		st.aborted = code.ErrSyncCancelled.WithDetails(st.result.Account)
	}
}

// note records one attempted remote operation and decides whether the run
// keeps going. Revoked auth and an expired run deadline abort immediately;
// a run where every single attempt came back unavailable is a connectivity
// failure, not a pile of per-note failures.
func (st *runState) note(err error) bool {
	st.attempted++
	if err == nil {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		st.abortOnCtx(err)
		return false
	}
	if errors.Is(err, code.ErrUnauthorized) {
		st.aborted = code.ErrUnauthorized.WithDetails(st.result.Account)
		return false
	}
	if errors.Is(err, code.ErrUnavailable) {
		st.unavail++
		if st.unavail == st.attempted && st.attempted >= 2 {
			st.aborted = code.ErrConnectivity
			return false
		}
	}
	return true
}

func (s *syncService) Run(ctx context.Context, account string) (*dto.SyncResult, error) {
	if !s.tryLock(account) {
		return nil, code.ErrAlreadySyncing.WithDetails(account)
	}
	defer s.unlock(account)

	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	started := time.Now()
	st := &runState{
		result:  &dto.SyncResult{Account: account, StartedAt: timex.Time(started)},
		gw:      s.gateways(account),
		skew:    int64(s.opts.SkewTolerance / time.Second),
		settled: make(map[string]bool),
	}

	err := s.reconcile(ctx, account, st)
	st.result.FinishedAt = timex.Now()

	s.logger.Info("sync run finished",
		zap.String(logger.FieldAccount, account),
		zap.Int("pushed", st.result.Pushed),
		zap.Int("pulled", st.result.Pulled),
		zap.Int("deleted", st.result.Deleted),
		zap.Int("unchanged", st.result.Unchanged),
		zap.Int("failed", st.result.Failed),
		zap.Duration(logger.FieldDuration, time.Since(started)),
	)
	return st.result, err
}

func (s *syncService) reconcile(ctx context.Context, account string, st *runState) error {
	locals, err := s.local.Snapshot(ctx)
	if err != nil {
		return err
	}
	summaries, err := st.gw.List(ctx)
	if err != nil {
		if errors.Is(err, code.ErrUnauthorized) {
			return code.ErrUnauthorized.WithDetails(account)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			st.abortOnCtx(ctxErr)
			return st.aborted
		}
		return code.ErrConnectivity.WithDetails(err.Error())
	}
	mappings, err := s.mappings.ListByAccount(ctx, account)
	if err != nil {
		return err
	}

	byLocal := make(map[string]*domain.SyncMapping, len(mappings))
	byRemote := make(map[string]*domain.SyncMapping, len(mappings))
	for i := range mappings {
		m := &mappings[i]
		byLocal[m.LocalID] = m
		byRemote[m.RemoteID] = m
	}
	remoteByID := make(map[string]*domain.RemoteNoteSummary, len(summaries))
	for i := range summaries {
		remoteByID[summaries[i].RemoteID] = &summaries[i]
	}
	localByID := make(map[string]*domain.Note, len(locals))
	for i := range locals {
		localByID[locals[i].ID] = &locals[i]
	}

	// The remote scan runs before the push pass so an unmapped remote
	// copy of a note that also exists locally is adopted, not uploaded a
	// second time.
	for i := range summaries {
		if st.aborted != nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			st.abortOnCtx(ctxErr)
			break
		}
		sum := &summaries[i]
		localIDHint := ""
		if m := byRemote[sum.RemoteID]; m != nil {
			if _, ok := localByID[m.LocalID]; ok {
				continue
			}
			// The mapped local note is gone without a tombstone; the
			// remote copy is authoritative and comes back down.
			localIDHint = m.LocalID
		}
		s.pullNew(ctx, account, sum, localIDHint, localByID, st)
	}

	for i := range locals {
		if st.aborted != nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			st.abortOnCtx(ctxErr)
			break
		}
		n := &locals[i]
		if st.settled[n.ID] {
			continue
		}
		m := byLocal[n.ID]
		switch {
		case n.Deleted:
			s.propagateDeletion(ctx, account, n, m, st)
		case m == nil:
			s.pushNew(ctx, account, n, st)
		default:
			s.reconcileMatched(ctx, account, n, m, remoteByID[m.RemoteID], st)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		st.abortOnCtx(ctxErr)
	}
	if st.aborted != nil {
		return st.aborted
	}
	if st.attempted > 0 && st.unavail == st.attempted {
		return code.ErrConnectivity
	}
	return nil
}

// pushNew uploads a never-synced local note and records the mapping only
// after the remote store acknowledged it.
func (s *syncService) pushNew(ctx context.Context, account string, n *domain.Note, st *runState) {
	remoteID, err := st.gw.Create(ctx, n)
	if !st.note(err) {
		return
	}
	if err != nil {
		st.fail(n.ID, "", err)
		return
	}
	if err = s.local.SetRemoteID(ctx, n.ID, remoteID); err != nil {
		st.fail(n.ID, remoteID, err)
		return
	}
	if err = s.recordMapping(ctx, account, n.ID, remoteID, n.ModifiedAt); err != nil {
		st.fail(n.ID, remoteID, err)
		return
	}
	st.result.Pushed++
	s.logger.Debug("pushed new note",
		zap.String(logger.FieldAccount, account),
		zap.String(logger.FieldNoteID, n.ID),
		zap.String(logger.FieldRemoteID, remoteID))
}

// pullNew downloads a remote note no mapping knows about. A payload that
// carries the id of an existing local note is the same note arriving from
// another device; it is adopted instead of duplicated.
func (s *syncService) pullNew(ctx context.Context, account string, sum *domain.RemoteNoteSummary, localIDHint string, localByID map[string]*domain.Note, st *runState) {
	fetched, err := st.gw.Fetch(ctx, sum.RemoteID)
	if !st.note(err) {
		return
	}
	if err != nil {
		st.fail("", sum.RemoteID, err)
		return
	}
	if fetched.ModifiedAt == 0 {
		fetched.ModifiedAt = sum.ModifiedAt
	}
	if fetched.CreatedAt == 0 {
		fetched.CreatedAt = fetched.ModifiedAt
	}

	if fetched.ID != "" {
		if existing, ok := localByID[fetched.ID]; ok && !existing.Deleted {
			s.adopt(ctx, account, existing, fetched, st)
			return
		}
	}
	if fetched.ID == "" {
		fetched.ID = localIDHint
	}
	if fetched.ID == "" {
		fetched.ID = uuid.NewString()
	}
	if err = s.local.ApplyRemoteChanges(ctx, []domain.Note{*fetched}, nil); err != nil {
		st.fail(fetched.ID, sum.RemoteID, err)
		return
	}
	if err = s.recordMapping(ctx, account, fetched.ID, sum.RemoteID, fetched.ModifiedAt); err != nil {
		st.fail(fetched.ID, sum.RemoteID, err)
		return
	}
	st.result.Pulled++
	s.logger.Debug("pulled new note",
		zap.String(logger.FieldAccount, account),
		zap.String(logger.FieldNoteID, fetched.ID),
		zap.String(logger.FieldRemoteID, sum.RemoteID))
}

// adopt links an unmapped remote note to the local note that shares its id.
// The newer side wins right away; the mapping makes the pair matched from
// the next run on.
func (s *syncService) adopt(ctx context.Context, account string, local *domain.Note, fetched *domain.Note, st *runState) {
	st.settled[local.ID] = true
	if fetched.ModifiedAt-local.ModifiedAt > st.skew {
		fetched.ID = local.ID
		if err := s.local.ApplyRemoteChanges(ctx, []domain.Note{*fetched}, nil); err != nil {
			st.fail(local.ID, fetched.RemoteID, err)
			return
		}
		if err := s.recordMapping(ctx, account, local.ID, fetched.RemoteID, fetched.ModifiedAt); err != nil {
			st.fail(local.ID, fetched.RemoteID, err)
			return
		}
		st.result.Pulled++
		return
	}
	if err := s.local.SetRemoteID(ctx, local.ID, fetched.RemoteID); err != nil {
		st.fail(local.ID, fetched.RemoteID, err)
		return
	}
	if err := s.recordMapping(ctx, account, local.ID, fetched.RemoteID, local.ModifiedAt); err != nil {
		st.fail(local.ID, fetched.RemoteID, err)
		return
	}
	st.result.Unchanged++
}

// reconcileMatched resolves one mapped pair. Timestamps within the skew
// window compare equal and the local copy is kept.
func (s *syncService) reconcileMatched(ctx context.Context, account string, n *domain.Note, m *domain.SyncMapping, sum *domain.RemoteNoteSummary, st *runState) {
	if sum == nil {
		// The remote note disappeared since the mapping was written, so
		// the deletion propagates locally.
		if err := s.local.ApplyRemoteChanges(ctx, nil, []string{n.ID}); err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		if err := s.mappings.Delete(ctx, account, n.ID); err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		st.result.Deleted++
		return
	}

	diff := n.ModifiedAt - sum.ModifiedAt
	switch {
	case diff >= -st.skew && diff <= st.skew:
		st.result.Unchanged++

	case diff > 0:
		err := st.gw.Update(ctx, m.RemoteID, n)
		if !st.note(err) {
			return
		}
		if err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		if err = s.recordMapping(ctx, account, n.ID, m.RemoteID, n.ModifiedAt); err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		st.result.Pushed++

	default:
		fetched, err := st.gw.Fetch(ctx, m.RemoteID)
		if !st.note(err) {
			return
		}
		if err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		if fetched.ModifiedAt == 0 {
			fetched.ModifiedAt = sum.ModifiedAt
		}
		if fetched.CreatedAt == 0 {
			fetched.CreatedAt = n.CreatedAt
		}
		fetched.ID = n.ID
		if err = s.local.ApplyRemoteChanges(ctx, []domain.Note{*fetched}, nil); err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		if err = s.recordMapping(ctx, account, n.ID, m.RemoteID, fetched.ModifiedAt); err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		st.result.Pulled++
	}
}

// propagateDeletion pushes a tombstone to the remote store, then drops the
// mapping and the tombstone itself. A never-synced tombstone has nothing to
// propagate and is purged directly.
func (s *syncService) propagateDeletion(ctx context.Context, account string, n *domain.Note, m *domain.SyncMapping, st *runState) {
	if m != nil {
		err := st.gw.Delete(ctx, m.RemoteID)
		if !st.note(err) {
			return
		}
		if err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
		if err = s.mappings.Delete(ctx, account, n.ID); err != nil {
			st.fail(n.ID, m.RemoteID, err)
			return
		}
	}
	if err := s.local.PurgeTombstones(ctx, []string{n.ID}); err != nil {
		st.fail(n.ID, "", err)
		return
	}
	if m != nil {
		st.result.Deleted++
	}
}

func (s *syncService) recordMapping(ctx context.Context, account, localID, remoteID string, modifiedAt int64) error {
	return s.mappings.Upsert(ctx, &domain.SyncMapping{
		Account:              account,
		LocalID:              localID,
		RemoteID:             remoteID,
		LastSyncedModifiedAt: modifiedAt,
	})
}
