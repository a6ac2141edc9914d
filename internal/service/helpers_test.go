package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/access-gate-service/internal/config"
	"github.com/spec-kit/access-gate-service/internal/domain"
	"github.com/spec-kit/access-gate-service/internal/events"
	"github.com/spec-kit/access-gate-service/internal/gateway"
	"github.com/spec-kit/access-gate-service/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type staticProvider struct {
	settings config.GateSettings
}

func (p staticProvider) Gate() config.GateSettings { return p.settings }

type fakeGateway struct {
	mu         sync.Mutex
	grantErr   error
	revokeErrs map[string]error
	admitErrs  map[string]error
	inviteRef  string
	granted    []string
	revoked    []string
	admitted   []string
}

func (g *fakeGateway) Grant(_ context.Context, subjectID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grantErr != nil {
		return g.grantErr
	}
	g.granted = append(g.granted, subjectID)
	return nil
}

func (g *fakeGateway) Revoke(_ context.Context, subjectID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.revokeErrs[subjectID]; err != nil {
		return err
	}
	g.revoked = append(g.revoked, subjectID)
	return nil
}

func (g *fakeGateway) Admit(_ context.Context, subjectID string) (*gateway.InviteHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.admitErrs[subjectID]; err != nil {
		return nil, err
	}
	g.admitted = append(g.admitted, subjectID)
	return &gateway.InviteHandle{SubjectID: subjectID, InviteRef: g.inviteRef}, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}

type fakeTokenRepo struct {
	createFn     func(ctx context.Context, token *domain.Token) error
	getByValueFn func(ctx context.Context, value string) (*domain.Token, error)
	redeemFn     func(ctx context.Context, value, subjectID string, now time.Time) (*domain.Token, error)
	archiveFn    func(ctx context.Context, before time.Time) (int64, error)
}

func (r *fakeTokenRepo) Create(ctx context.Context, token *domain.Token) error {
	return r.createFn(ctx, token)
}

func (r *fakeTokenRepo) GetByValue(ctx context.Context, value string) (*domain.Token, error) {
	return r.getByValueFn(ctx, value)
}

func (r *fakeTokenRepo) Redeem(ctx context.Context, value, subjectID string, now time.Time) (*domain.Token, error) {
	return r.redeemFn(ctx, value, subjectID, now)
}

func (r *fakeTokenRepo) ArchiveExpiredUnused(ctx context.Context, before time.Time) (int64, error) {
	return r.archiveFn(ctx, before)
}

func (r *fakeTokenRepo) Counts(context.Context) (int64, int64, error) { return 0, 0, nil }

func (r *fakeTokenRepo) WithTx(pgx.Tx) repository.TokenRepository { return r }

type fakeMembershipRepo struct {
	mu           sync.Mutex
	upsertFn     func(ctx context.Context, subjectID string, sourceTokenID *string, duration time.Duration, now time.Time) (*domain.Membership, error)
	getActiveFn  func(ctx context.Context, subjectID string) (*domain.Membership, error)
	expired      []domain.Membership
	markErrs     map[string]error
	markedIDs    []string
	listCalls    int
}

func (r *fakeMembershipRepo) UpsertActive(ctx context.Context, subjectID string, sourceTokenID *string, duration time.Duration, now time.Time) (*domain.Membership, error) {
	return r.upsertFn(ctx, subjectID, sourceTokenID, duration, now)
}

func (r *fakeMembershipRepo) GetActiveBySubject(ctx context.Context, subjectID string) (*domain.Membership, error) {
	return r.getActiveFn(ctx, subjectID)
}

func (r *fakeMembershipRepo) ListExpiredActive(context.Context, time.Time) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	return append([]domain.Membership{}, r.expired...), nil
}

func (r *fakeMembershipRepo) MarkExpired(_ context.Context, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.markErrs[id]; err != nil {
		return err
	}
	r.markedIDs = append(r.markedIDs, id)
	return nil
}

func (r *fakeMembershipRepo) Counts(context.Context) (int64, int64, error) { return 0, 0, nil }

func (r *fakeMembershipRepo) WithTx(pgx.Tx) repository.MembershipRepository { return r }

type fakeAdmissionRepo struct {
	mu            sync.Mutex
	insertFn      func(ctx context.Context, subjectID string, now time.Time) (*domain.AdmissionRequest, error)
	getPendingFn  func(ctx context.Context, subjectID string) (*domain.AdmissionRequest, error)
	ready         []domain.AdmissionRequest
	markErrs      map[string]error
	processedIDs  []string
	deletedBefore []time.Time
}

func (r *fakeAdmissionRepo) InsertPending(ctx context.Context, subjectID string, now time.Time) (*domain.AdmissionRequest, error) {
	return r.insertFn(ctx, subjectID, now)
}

func (r *fakeAdmissionRepo) GetPending(ctx context.Context, subjectID string) (*domain.AdmissionRequest, error) {
	return r.getPendingFn(ctx, subjectID)
}

func (r *fakeAdmissionRepo) ListReadyBefore(context.Context, time.Time) ([]domain.AdmissionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AdmissionRequest{}, r.ready...), nil
}

func (r *fakeAdmissionRepo) MarkProcessed(_ context.Context, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.markErrs[id]; err != nil {
		return err
	}
	r.processedIDs = append(r.processedIDs, id)
	return nil
}

func (r *fakeAdmissionRepo) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedBefore = append(r.deletedBefore, cutoff)
	return 2, nil
}

func (r *fakeAdmissionRepo) Counts(context.Context) (int64, int64, error) { return 0, 0, nil }

func testLogger() *zap.Logger { return zap.NewNop() }

// nopTx satisfies pgx.Tx for services whose repositories keep their own
// state; Commit and Rollback are no-ops.
type nopTx struct{}

func (nopTx) Begin(context.Context) (pgx.Tx, error) { return nopTx{}, nil }
func (nopTx) Commit(context.Context) error          { return nil }
func (nopTx) Rollback(context.Context) error        { return nil }
func (nopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (nopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (nopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (nopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (nopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (nopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (nopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (nopTx) Conn() *pgx.Conn                                         { return nil }

type nopTxBeginner struct{}

func (nopTxBeginner) Begin(context.Context) (pgx.Tx, error) { return nopTx{}, nil }

// casTokenRepo models the store's conditional update: the redeemed flag
// flips exactly once under any interleaving.
type casTokenRepo struct {
	mu    sync.Mutex
	token domain.Token
}

func newCASTokenRepo(token domain.Token) *casTokenRepo { return &casTokenRepo{token: token} }

func (r *casTokenRepo) Create(_ context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = *token
	return nil
}

func (r *casTokenRepo) GetByValue(_ context.Context, value string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token.Value != value {
		return nil, pgx.ErrNoRows
	}
	copied := r.token
	return &copied, nil
}

func (r *casTokenRepo) Redeem(_ context.Context, value, subjectID string, now time.Time) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token.Value != value || r.token.Redeemed || !now.Before(r.token.ExpiresAt) {
		return nil, pgx.ErrNoRows
	}
	r.token.Redeemed = true
	r.token.RedeemedBy = &subjectID
	r.token.RedeemedAt = &now
	copied := r.token
	return &copied, nil
}

func (r *casTokenRepo) ArchiveExpiredUnused(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *casTokenRepo) Counts(context.Context) (int64, int64, error) { return 0, 0, nil }

func (r *casTokenRepo) WithTx(pgx.Tx) repository.TokenRepository { return r }

// memMembershipRepo is an in-memory ledger honoring the one-active-row
// invariant and the extend-from-GREATEST policy.
type memMembershipRepo struct {
	mu     sync.Mutex
	rows   map[string]*domain.Membership
	nextID int
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{rows: make(map[string]*domain.Membership)}
}

func (r *memMembershipRepo) seed(m domain.Membership) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[m.ID] = &m
}

func (r *memMembershipRepo) UpsertActive(_ context.Context, subjectID string, sourceTokenID *string, duration time.Duration, now time.Time) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.SubjectID == subjectID && m.Status == domain.MembershipStatusActive {
			base := m.ExpiresAt
			if now.After(base) {
				base = now
			}
			m.ExpiresAt = base.Add(duration)
			if sourceTokenID != nil {
				m.SourceTokenID = sourceTokenID
			}
			m.UpdatedAt = now
			copied := *m
			return &copied, nil
		}
	}
	r.nextID++
	m := &domain.Membership{
		ID:            fmt.Sprintf("m-%d", r.nextID),
		SubjectID:     subjectID,
		SourceTokenID: sourceTokenID,
		Status:        domain.MembershipStatusActive,
		ActivatedAt:   now,
		ExpiresAt:     now.Add(duration),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.rows[m.ID] = m
	copied := *m
	return &copied, nil
}

func (r *memMembershipRepo) GetActiveBySubject(_ context.Context, subjectID string) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.SubjectID == subjectID && m.Status == domain.MembershipStatusActive {
			copied := *m
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memMembershipRepo) ListExpiredActive(_ context.Context, now time.Time) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Membership
	for _, m := range r.rows {
		if m.Status == domain.MembershipStatusActive && !m.ExpiresAt.After(now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMembershipRepo) MarkExpired(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[id]
	if !ok || m.Status != domain.MembershipStatusActive {
		return pgx.ErrNoRows
	}
	m.Status = domain.MembershipStatusExpired
	m.RevokedAt = &now
	m.UpdatedAt = now
	return nil
}

func (r *memMembershipRepo) Counts(context.Context) (int64, int64, error) { return 0, 0, nil }

func (r *memMembershipRepo) WithTx(pgx.Tx) repository.MembershipRepository { return r }

// memAdmissionRepo is an in-memory queue honoring the single-pending-row
// invariant.
type memAdmissionRepo struct {
	mu   sync.Mutex
	rows []*domain.AdmissionRequest
}

func newMemAdmissionRepo() *memAdmissionRepo { return &memAdmissionRepo{} }

func (r *memAdmissionRepo) InsertPending(_ context.Context, subjectID string, now time.Time) (*domain.AdmissionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.rows {
		if req.SubjectID == subjectID && !req.Processed {
			return nil, pgx.ErrNoRows
		}
	}
	req := &domain.AdmissionRequest{
		ID:          fmt.Sprintf("req-%d", len(r.rows)+1),
		SubjectID:   subjectID,
		RequestedAt: now,
	}
	r.rows = append(r.rows, req)
	copied := *req
	return &copied, nil
}

func (r *memAdmissionRepo) GetPending(_ context.Context, subjectID string) (*domain.AdmissionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.rows {
		if req.SubjectID == subjectID && !req.Processed {
			copied := *req
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memAdmissionRepo) ListReadyBefore(_ context.Context, cutoff time.Time) ([]domain.AdmissionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AdmissionRequest
	for _, req := range r.rows {
		if !req.Processed && !req.RequestedAt.After(cutoff) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *memAdmissionRepo) MarkProcessed(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.rows {
		if req.ID == id {
			if req.Processed {
				return pgx.ErrNoRows
			}
			req.Processed = true
			req.ProcessedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memAdmissionRepo) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *memAdmissionRepo) Counts(_ context.Context) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending, processed int64
	for _, req := range r.rows {
		if req.Processed {
			processed++
		} else {
			pending++
		}
	}
	return pending, processed, nil
}
