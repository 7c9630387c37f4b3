package services

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/dbx"
	"github.com/dmitrijs2005/tandem/internal/logging"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/audit"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/ephemeral"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/idempotency"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/queue"
	"github.com/dmitrijs2005/tandem/internal/server/repositories/scheduled"
	"github.com/dmitrijs2005/tandem/internal/server/rtc"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func nopLogger() logging.Logger {
	return logging.NewJSONLogger(io.Discard, "debug")
}

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// Row ids are UUIDs in the schema, so fixtures use real ones.
const (
	sessionOne = "0b6f2d3c-6a1e-4c2b-9d7e-3f1a2b4c5d60"
	bobTutorID = "7c1e9a42-5b3d-4f60-8e21-9a0b1c2d3e4f"
	unknownID  = "d9a8c7b6-0000-4000-8000-000000000000"
)

// memStore is an in-memory stand-in for every repository. Transactions
// are not simulated: writes made before a rollback stay visible.
type memStore struct {
	mu        sync.Mutex
	queue     map[string]*models.QueueEntry
	ephemeral map[string]*models.EphemeralSession
	scheduled map[string]*models.ScheduledSession
	learners  map[string]*models.LearnerProfile
	tutors    map[string]*models.TutorProfile
	idem      map[models.IdempotencyKey]*models.IdempotencyRecord
	audit     []*models.AuditEntry
	fail      map[string]error

	// onClaim runs under the store lock before Claim checks the key, so a
	// test can stand in for a concurrent request owning it.
	onClaim func()
	// createMiss makes CreateIfAbsent lose the insert race once.
	createMiss *models.EphemeralSession
	// updateMiss makes scheduled UpdateStatus lose the race once, moving
	// the row to the given status.
	updateMiss models.SessionStatus
}

func newMemStore() *memStore {
	return &memStore{
		queue:     map[string]*models.QueueEntry{},
		ephemeral: map[string]*models.EphemeralSession{},
		scheduled: map[string]*models.ScheduledSession{},
		learners:  map[string]*models.LearnerProfile{},
		tutors:    map[string]*models.TutorProfile{},
		idem:      map[models.IdempotencyKey]*models.IdempotencyRecord{},
		fail:      map[string]error{},
	}
}

func (s *memStore) err(op string) error { return s.fail[op] }

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.audit {
		out = append(out, e.Action)
	}
	return out
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Queue(dbx.DBTX) queue.Repository              { return memQueue{m.s} }
func (m *fakeRepoManager) Ephemeral(dbx.DBTX) ephemeral.Repository      { return memEphemeral{m.s} }
func (m *fakeRepoManager) Scheduled(dbx.DBTX) scheduled.Repository      { return memScheduled{m.s} }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository        { return memProfiles{m.s} }
func (m *fakeRepoManager) Idempotency(dbx.DBTX) idempotency.Repository  { return memIdem{m.s} }
func (m *fakeRepoManager) Audit(dbx.DBTX) audit.Repository              { return memAudit{m.s} }

// --- queue ---

type memQueue struct{ s *memStore }

func (q memQueue) Upsert(_ context.Context, e *models.QueueEntry) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if err := q.s.err("queue.Upsert"); err != nil {
		return err
	}
	c := *e
	q.s.queue[e.ActorID] = &c
	return nil
}

func (q memQueue) LockOldestOther(_ context.Context, actorID string) (*models.QueueEntry, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if err := q.s.err("queue.LockOldestOther"); err != nil {
		return nil, err
	}
	var others []*models.QueueEntry
	busy := map[string]bool{}
	for _, e := range q.s.ephemeral {
		if e.IsActive() {
			busy[e.ActorAID], busy[e.ActorBID] = true, true
		}
	}
	for id, e := range q.s.queue {
		if id != actorID && !busy[id] {
			others = append(others, e)
		}
	}
	if len(others) == 0 {
		return nil, common.ErrorNotFound
	}
	sort.Slice(others, func(i, j int) bool {
		if !others[i].JoinedAt.Equal(others[j].JoinedAt) {
			return others[i].JoinedAt.Before(others[j].JoinedAt)
		}
		return others[i].ActorID < others[j].ActorID
	})
	c := *others[0]
	return &c, nil
}

func (q memQueue) Delete(_ context.Context, actorID string) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	_, ok := q.s.queue[actorID]
	delete(q.s.queue, actorID)
	return ok, nil
}

// --- ephemeral ---

type memEphemeral struct{ s *memStore }

func (r memEphemeral) GetByID(_ context.Context, id string) (*models.EphemeralSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.ephemeral[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *e
	return &c, nil
}

func (r memEphemeral) FindActiveByActor(_ context.Context, actorID string) (*models.EphemeralSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("ephemeral.FindActiveByActor"); err != nil {
		return nil, err
	}
	var best *models.EphemeralSession
	for _, e := range r.s.ephemeral {
		if e.HasParticipant(actorID) && e.IsActive() && (best == nil || e.StartedAt.After(best.StartedAt)) {
			best = e
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	c := *best
	return &c, nil
}

func (r memEphemeral) findWaitingLocked(a, b string) *models.EphemeralSession {
	for _, e := range r.s.ephemeral {
		if e.Status == models.EphemeralWaiting && e.HasParticipant(a) && e.HasParticipant(b) {
			return e
		}
	}
	return nil
}

func (r memEphemeral) FindWaitingByPair(_ context.Context, a, b string) (*models.EphemeralSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.findWaitingLocked(a, b)
	if e == nil {
		return nil, common.ErrorNotFound
	}
	c := *e
	return &c, nil
}

func (r memEphemeral) CreateIfAbsent(_ context.Context, e *models.EphemeralSession) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("ephemeral.CreateIfAbsent"); err != nil {
		return false, err
	}
	if w := r.s.createMiss; w != nil {
		r.s.createMiss = nil
		c := *w
		r.s.ephemeral[w.ID] = &c
		return false, nil
	}
	if r.findWaitingLocked(e.ActorAID, e.ActorBID) != nil {
		return false, nil
	}
	c := *e
	r.s.ephemeral[e.ID] = &c
	return true, nil
}

func (r memEphemeral) MarkLive(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.ephemeral[id]
	if !ok || e.Status != models.EphemeralWaiting {
		return false, nil
	}
	e.Status = models.EphemeralLive
	return true, nil
}

func (r memEphemeral) MarkEnded(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("ephemeral.MarkEnded"); err != nil {
		return false, err
	}
	e, ok := r.s.ephemeral[id]
	if !ok || e.Status == models.EphemeralEnded {
		return false, nil
	}
	e.Status = models.EphemeralEnded
	e.EndedAt = &at
	return true, nil
}

// --- scheduled ---

type memScheduled struct{ s *memStore }

func (r memScheduled) Create(_ context.Context, s *models.ScheduledSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("scheduled.Create"); err != nil {
		return err
	}
	c := *s
	r.s.scheduled[s.ID] = &c
	return nil
}

func (r memScheduled) GetByID(_ context.Context, id string) (*models.ScheduledSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.scheduled[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *s
	for _, l := range r.s.learners {
		if l.ID == s.LearnerProfileID {
			c.LearnerUserID = l.UserID
		}
	}
	if s.TutorProfileID != nil {
		if t, ok := r.s.tutors[*s.TutorProfileID]; ok {
			u := t.UserID
			c.TutorUserID = &u
		}
	}
	return &c, nil
}

func (r memScheduled) HasTutorConflict(_ context.Context, tutorID string, in models.Interval) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, s := range r.s.scheduled {
		if s.TutorProfileID == nil || *s.TutorProfileID != tutorID {
			continue
		}
		if s.Status != models.StatusScheduled && s.Status != models.StatusLive {
			continue
		}
		if s.Interval().Overlaps(in) {
			return true, nil
		}
	}
	return false, nil
}

func (r memScheduled) UpdateStatus(_ context.Context, id string, expected, to models.SessionStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.scheduled[id]
	if !ok {
		return false, nil
	}
	if r.s.updateMiss != "" {
		s.Status = r.s.updateMiss
		r.s.updateMiss = ""
		return false, nil
	}
	if s.Status != expected {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = at
	return true, nil
}

// --- profiles ---

type memProfiles struct{ s *memStore }

func (r memProfiles) CreateLearner(_ context.Context, p *models.LearnerProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *p
	r.s.learners[p.ID] = &c
	return nil
}

func (r memProfiles) CreateTutor(_ context.Context, p *models.TutorProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *p
	r.s.tutors[p.ID] = &c
	return nil
}

func (r memProfiles) GetLearnerByUserID(ctx context.Context, userID string) (*models.LearnerProfile, error) {
	return r.LockLearnerByUserID(ctx, userID)
}

func (r memProfiles) LockLearnerByUserID(_ context.Context, userID string) (*models.LearnerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("profiles.LockLearnerByUserID"); err != nil {
		return nil, err
	}
	for _, l := range r.s.learners {
		if l.UserID == userID {
			c := *l
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memProfiles) LockTutor(_ context.Context, id string) (*models.TutorProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tutors[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r memProfiles) Debit(_ context.Context, id string, amount int) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.learners[id]
	if !ok || l.Credits < amount {
		return 0, false, nil
	}
	l.Credits -= amount
	return l.Credits, true, nil
}

// --- idempotency ---

type memIdem struct{ s *memStore }

func (r memIdem) Get(_ context.Context, key models.IdempotencyKey) (*models.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("idempotency.Get"); err != nil {
		return nil, err
	}
	rec, ok := r.s.idem[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rec
	return &c, nil
}

func (r memIdem) Claim(_ context.Context, key models.IdempotencyKey, hash []byte, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.onClaim != nil {
		r.s.onClaim()
	}
	if _, ok := r.s.idem[key]; ok {
		return false, nil
	}
	r.s.idem[key] = &models.IdempotencyRecord{Key: key, RequestHash: hash, CreatedAt: at}
	return true, nil
}

func (r memIdem) Save(_ context.Context, rec *models.IdempotencyRecord) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("idempotency.Save"); err != nil {
		return false, err
	}
	if cur, ok := r.s.idem[rec.Key]; ok && cur.ResponseBody != nil {
		return false, nil
	}
	c := *rec
	r.s.idem[rec.Key] = &c
	return true, nil
}

func (r memIdem) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, rec := range r.s.idem {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.s.idem, k)
			n++
		}
	}
	return n, nil
}

// --- audit ---

type memAudit struct{ s *memStore }

func (r memAudit) Append(_ context.Context, e *models.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.err("audit.Append"); err != nil {
		return err
	}
	c := *e
	r.s.audit = append(r.s.audit, &c)
	return nil
}

func (r memAudit) ListOlderThan(_ context.Context, cutoff time.Time, limit int) ([]*models.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range r.s.audit {
		if e.CreatedAt.Before(cutoff) && len(out) < limit {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memAudit) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, e := range r.s.audit {
		if e.ID == id {
			r.s.audit = append(r.s.audit[:i], r.s.audit[i+1:]...)
			return nil
		}
	}
	return nil
}

// --- rtc ---

// fakeProvider wraps the in-memory provider and lets tests fail calls.
type fakeProvider struct {
	*rtc.MemoryProvider
	listErr      error
	broadcastErr error
	deleteErr    error
	deleted      []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{MemoryProvider: rtc.NewMemoryProvider()}
}

func (p *fakeProvider) ListOccupants(ctx context.Context, room string) ([]string, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.MemoryProvider.ListOccupants(ctx, room)
}

func (p *fakeProvider) Broadcast(ctx context.Context, room, sender string, payload []byte) error {
	if p.broadcastErr != nil {
		return p.broadcastErr
	}
	return p.MemoryProvider.Broadcast(ctx, room, sender, payload)
}

func (p *fakeProvider) DeleteRoom(ctx context.Context, room string) error {
	p.deleted = append(p.deleted, room)
	if p.deleteErr != nil {
		return p.deleteErr
	}
	return p.MemoryProvider.DeleteRoom(ctx, room)
}
