package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/providers"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memDB mimics the Postgres store closely enough for orchestrator tests:
// conditional updates, unique codes, committed-only reads outside a
// transaction and rollback of everything a failed transaction wrote.
type memDB struct {
	mu         sync.Mutex
	payments   map[string]models.PaymentRecord
	candidates map[uuid.UUID]models.Candidate
	sequences  map[int]int64
	events     map[uuid.UUID]models.GatewayEventLog
	notifLogs  []models.NotificationLog
	clock      int64
}

func newMemDB() *memDB {
	return &memDB{
		payments:   map[string]models.PaymentRecord{},
		candidates: map[uuid.UUID]models.Candidate{},
		sequences:  map[int]int64{},
		events:     map[uuid.UUID]models.GatewayEventLog{},
	}
}

func (db *memDB) tick() time.Time {
	db.clock++
	return time.Unix(1_700_000_000+db.clock, 0)
}

type snapshot struct {
	payments   map[string]models.PaymentRecord
	candidates map[uuid.UUID]models.Candidate
	events     int
}

func (db *memDB) snapshot() snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := snapshot{
		payments:   make(map[string]models.PaymentRecord, len(db.payments)),
		candidates: make(map[uuid.UUID]models.Candidate, len(db.candidates)),
		events:     len(db.events),
	}
	for k, v := range db.payments {
		s.payments[k] = v
	}
	for k, v := range db.candidates {
		s.candidates[k] = v
	}
	return s
}

func (db *memDB) payment(ref string) models.PaymentRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.payments[ref]
}

func (db *memDB) candidateList() []models.Candidate {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]models.Candidate, 0, len(db.candidates))
	for _, c := range db.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (db *memDB) eventLogs() []models.GatewayEventLog {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]models.GatewayEventLog, 0, len(db.events))
	for _, e := range db.events {
		out = append(out, e)
	}
	return out
}

// ---- unit of work ----

type undoLog struct{ steps []func() }

func (u *undoLog) add(fn func()) {
	if u != nil {
		u.steps = append(u.steps, fn)
	}
}

func (u *undoLog) rollback() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
}

func (db *memDB) Transaction(ctx context.Context, fn func(repository.TxStores) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	undo := &undoLog{}
	err := fn(repository.TxStores{
		Payments:   &memPayments{db: db, undo: undo},
		Candidates: &memCandidates{db: db, undo: undo},
	})
	if err != nil {
		undo.rollback()
	}
	return err
}

// ---- payments ----

// memPayments locks db.mu per call unless it is bound to a transaction,
// which already holds it.
type memPayments struct {
	db   *memDB
	undo *undoLog
}

func (p *memPayments) lock() func() {
	if p.undo != nil {
		return func() {}
	}
	p.db.mu.Lock()
	return p.db.mu.Unlock
}

func (p *memPayments) Create(_ context.Context, rec *models.PaymentRecord) error {
	defer p.lock()()
	if _, ok := p.db.payments[rec.Reference]; ok {
		return fmt.Errorf("create payment %s: %w", rec.Reference, apperrors.ErrDuplicateReference)
	}
	if rec.Status == "" {
		rec.Status = models.PaymentStatusPending
	}
	rec.ID = uint(len(p.db.payments) + 1)
	rec.CreatedAt = p.db.tick()
	p.db.payments[rec.Reference] = *rec
	return nil
}

func (p *memPayments) FindByReference(_ context.Context, ref string) (*models.PaymentRecord, error) {
	defer p.lock()()
	return p.find(ref)
}

func (p *memPayments) LockByReference(_ context.Context, ref string) (*models.PaymentRecord, error) {
	defer p.lock()()
	return p.find(ref)
}

func (p *memPayments) find(ref string) (*models.PaymentRecord, error) {
	rec, ok := p.db.payments[ref]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", ref, apperrors.ErrUnknownReference)
	}
	return &rec, nil
}

func (p *memPayments) MarkSuccess(_ context.Context, ref, code string, canonical bool, candidateID uuid.UUID) (*models.PaymentRecord, error) {
	defer p.lock()()
	for _, other := range p.db.payments {
		if other.IssuedCode != nil && *other.IssuedCode == code {
			return nil, apperrors.ErrSequenceAllocationConflict
		}
	}
	return p.transition(ref, func(r *models.PaymentRecord) {
		c, id, now := code, candidateID, time.Now()
		r.Status = models.PaymentStatusSuccess
		r.IssuedCode = &c
		r.CodeCanonical = canonical
		r.CandidateID = &id
		r.GatewayStatus = "success"
		r.VerifiedAt = &now
	})
}

func (p *memPayments) MarkFailed(_ context.Context, ref, reason, gatewayStatus string) (*models.PaymentRecord, error) {
	defer p.lock()()
	return p.transition(ref, func(r *models.PaymentRecord) {
		now := time.Now()
		r.Status = models.PaymentStatusFailed
		r.FailureReason = reason
		r.GatewayStatus = gatewayStatus
		r.VerifiedAt = &now
	})
}

func (p *memPayments) transition(ref string, apply func(*models.PaymentRecord)) (*models.PaymentRecord, error) {
	rec, ok := p.db.payments[ref]
	if !ok || rec.Status != models.PaymentStatusPending {
		return nil, fmt.Errorf("payment %s: %w", ref, apperrors.ErrAlreadyFinalized)
	}
	prev := rec
	p.undo.add(func() { p.db.payments[ref] = prev })
	apply(&rec)
	p.db.payments[ref] = rec
	out := rec
	return &out, nil
}

func (p *memPayments) ListPending(_ context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.PaymentRecord, error) {
	defer p.lock()()
	var out []models.PaymentRecord
	for _, r := range p.db.payments {
		if r.Status == models.PaymentStatusPending && r.CreatedAt.Before(createdBefore) && r.CreatedAt.After(createdAfter) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- candidates ----

type memCandidates struct {
	db   *memDB
	undo *undoLog
}

func (c *memCandidates) lock() func() {
	if c.undo != nil {
		return func() {}
	}
	c.db.mu.Lock()
	return c.db.mu.Unlock
}

func (c *memCandidates) clash(id uuid.UUID, code, ref *string) bool {
	for _, o := range c.db.candidates {
		if o.ID == id {
			continue
		}
		if code != nil && o.RegistrationNumber != nil && *o.RegistrationNumber == *code {
			return true
		}
		if ref != nil && o.PaymentReference != nil && *o.PaymentReference == *ref {
			return true
		}
	}
	return false
}

func (c *memCandidates) Create(_ context.Context, cand *models.Candidate) error {
	defer c.lock()()
	if cand.ID == uuid.Nil {
		cand.ID = uuid.New()
	}
	if c.clash(cand.ID, cand.RegistrationNumber, cand.PaymentReference) {
		return fmt.Errorf("create candidate: %w", apperrors.ErrSequenceAllocationConflict)
	}
	cand.CreatedAt = c.db.tick()
	id := cand.ID
	c.undo.add(func() { delete(c.db.candidates, id) })
	c.db.candidates[id] = *cand
	return nil
}

func (c *memCandidates) FindByPaymentReference(_ context.Context, ref string) (*models.Candidate, error) {
	defer c.lock()()
	for _, o := range c.db.candidates {
		if o.PaymentReference != nil && *o.PaymentReference == ref {
			out := o
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *memCandidates) FindUnpaidByEmail(_ context.Context, email string) (*models.Candidate, error) {
	defer c.lock()()
	var best *models.Candidate
	for _, o := range c.db.candidates {
		if o.Email == email && o.PaymentStatus == models.CandidatePaymentPending && o.PaymentReference == nil {
			if best == nil || o.CreatedAt.Before(best.CreatedAt) {
				cp := o
				best = &cp
			}
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func (c *memCandidates) FindByRegistrationNumber(_ context.Context, code string) (*models.Candidate, error) {
	defer c.lock()()
	for _, o := range c.db.candidates {
		if o.RegistrationNumber != nil && *o.RegistrationNumber == code {
			out := o
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *memCandidates) MarkPaid(_ context.Context, id uuid.UUID, code, ref string) error {
	defer c.lock()()
	cand, ok := c.db.candidates[id]
	if !ok || cand.PaymentStatus != models.CandidatePaymentPending {
		return fmt.Errorf("candidate %s: %w", id, apperrors.ErrAlreadyFinalized)
	}
	if c.clash(id, &code, &ref) {
		return fmt.Errorf("candidate %s: %w", id, apperrors.ErrSequenceAllocationConflict)
	}
	prev := cand
	c.undo.add(func() { c.db.candidates[id] = prev })
	cand.RegistrationNumber = &code
	cand.PaymentReference = &ref
	cand.PaymentStatus = models.CandidatePaymentPaid
	c.db.candidates[id] = cand
	return nil
}

// ---- sequences, reference data, event log, notification log ----

// memSequences is not transactional, like the real allocator.
type memSequences struct{ db *memDB }

func (s *memSequences) Next(_ context.Context, schoolID int) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.db.sequences[schoolID]
	if !ok {
		for _, c := range s.db.candidates {
			if c.SchoolID == schoolID && c.RegistrationNumber != nil {
				cur++
			}
		}
	}
	cur++
	s.db.sequences[schoolID] = cur
	return cur, nil
}

type memReferences struct {
	schools map[int]models.School
}

func (r *memReferences) FindSchool(_ context.Context, stateID, lgaID, schoolID int) (*models.School, error) {
	s, ok := r.schools[schoolID]
	if !ok || s.StateID != stateID || s.LGAID != lgaID {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

type memGatewayEvents struct{ db *memDB }

func (m *memGatewayEvents) Create(_ context.Context, e *models.GatewayEventLog) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e.ID = uuid.New()
	e.ReceivedAt = time.Now()
	m.db.events[e.ID] = *e
	return nil
}

func (m *memGatewayEvents) UpdateOutcome(_ context.Context, id uuid.UUID, outcome, errMsg string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e := m.db.events[id]
	now := time.Now()
	e.Outcome = outcome
	e.Error = errMsg
	e.ProcessedAt = &now
	m.db.events[id] = e
	return nil
}

type memNotificationLogs struct {
	mu   sync.Mutex
	logs []models.NotificationLog
	err  error
}

func (m *memNotificationLogs) SaveLog(_ context.Context, log *models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return m.err
}

// ---- gateway ----

// fakeGateway uses the real Paystack signature and event parsing but
// answers Initialize and Verify from memory.
type fakeGateway struct {
	*providers.PaystackGateway

	mu            sync.Mutex
	nextRefs      []string
	initErr       error
	lastInit      providers.InitializeRequest
	verifications map[string]providers.Verification
	verifyErr     error
	verifyDelay   time.Duration
	// verifyHook, when set, runs at the start of every Verify.
	verifyHook    func()
	initCalls     int32
	verifyCalls   int32
}

const testGatewaySecret = "sk_test_gateway"

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		PaystackGateway: providers.NewPaystackGateway(testGatewaySecret, "http://gateway.invalid", time.Second),
		verifications:   map[string]providers.Verification{},
	}
}

func (g *fakeGateway) Initialize(_ context.Context, req providers.InitializeRequest) (*providers.InitializeResult, error) {
	n := atomic.AddInt32(&g.initCalls, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastInit = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	ref := fmt.Sprintf("R%d", n)
	if len(g.nextRefs) > 0 {
		ref, g.nextRefs = g.nextRefs[0], g.nextRefs[1:]
	}
	return &providers.InitializeResult{AuthorizationURL: "https://checkout.example/" + ref, Reference: ref}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*providers.Verification, error) {
	atomic.AddInt32(&g.verifyCalls, 1)
	g.mu.Lock()
	delay, verr, hook := g.verifyDelay, g.verifyErr, g.verifyHook
	v, ok := g.verifications[reference]
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if verr != nil {
		return nil, verr
	}
	if !ok {
		return nil, fmt.Errorf("verify %s: %w", reference, apperrors.ErrReferenceUnknownAtGateway)
	}
	return &v, nil
}

func (g *fakeGateway) setVerification(ref, status string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifications[ref] = providers.Verification{
		Reference: ref, Status: status, RawStatus: status, Amount: amount, Currency: "NGN",
	}
}

func (g *fakeGateway) setVerifyErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyErr = err
}

// ---- side-effect recorders ----

type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string]int
}

func (n *recordingNotifier) Notify(_ context.Context, _ *models.Candidate, p *models.PaymentRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = map[string]int{}
	}
	n.calls[p.Reference]++
}

func (n *recordingNotifier) count(ref string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[ref]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t string) []models.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PaymentEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func uuidFor(n byte) uuid.UUID {
	var id uuid.UUID
	id[15] = n
	return id
}
