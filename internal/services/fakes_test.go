package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"eventregistration/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// memStore is an in-memory backing store shared by the fake repositories. Every write replaces
// the stored value with a fresh copy so fakeUnitOfWork can roll back with a shallow snapshot.
type memStore struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	nextID    int
	events    map[string]*domain.Event
	remaining map[string]int
	coupons   map[string]*domain.Coupon
	regs      map[string]*domain.Registration
	balances  map[string]*domain.PaymentBalance
	payments  map[string]*domain.Payment
	orgs      map[string]*domain.Organization

	// paymentOrder records insertion order of payments.
	paymentOrder map[string]int
	seq          int

	// duplicateInserts makes the next n registration inserts fail with ErrDuplicateCode.
	duplicateInserts int
	createBalanceErr error
	createPaymentErr error
	codeExistsCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[string]*domain.Event),
		remaining: make(map[string]int),
		coupons:   make(map[string]*domain.Coupon),
		regs:      make(map[string]*domain.Registration),
		balances:  make(map[string]*domain.PaymentBalance),
		payments:  make(map[string]*domain.Payment),
		orgs:      make(map[string]*domain.Organization),

		paymentOrder: make(map[string]int),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) eventRepo() *memEvents      { return &memEvents{m} }
func (m *memStore) couponRepo() *memCoupons    { return &memCoupons{m} }
func (m *memStore) registrationRepo() *memRegs { return &memRegs{m} }
func (m *memStore) balanceRepo() *memBalances  { return &memBalances{m} }
func (m *memStore) paymentRepo() *memPayments  { return &memPayments{m} }
func (m *memStore) orgRepo() *memOrgs          { return &memOrgs{m} }
func (m *memStore) capacityRepo() *memCapacity { return &memCapacity{m} }
func (m *memStore) uow() *fakeUnitOfWork       { return &fakeUnitOfWork{m} }

func (m *memStore) registrationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}

func (m *memStore) remainingFor(eventID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining[eventID]
}

// addEvent stores e as-is, assigning an ID when empty.
func (m *memStore) addEvent(e *domain.Event) *domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.id("ev")
	}
	if e.CapacityRemaining != nil {
		m.remaining[e.ID] = *e.CapacityRemaining
	}
	cp := *e
	m.events[e.ID] = &cp
	return e
}

func (m *memStore) addCoupon(c *domain.Coupon) *domain.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = m.id("cp")
	}
	cp := *c
	m.coupons[c.ID] = &cp
	return c
}

func (m *memStore) coupon(id string) domain.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.coupons[id]
}

func (m *memStore) balanceFor(regID string) *domain.PaymentBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[regID]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (m *memStore) paymentsFor(regID string) []domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if p.RegistrationID == regID {
			out = append(out, *p)
		}
	}
	return out
}

type memEvents struct{ m *memStore }

func (r *memEvents) Create(ctx context.Context, e *domain.Event) error {
	r.m.addEvent(e)
	return nil
}

func (r *memEvents) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	if rem, ok := r.m.remaining[id]; ok && e.CapacityTotal != nil {
		cp.CapacityRemaining = &rem
	}
	return &cp, nil
}

func (r *memEvents) GetByEventCode(ctx context.Context, code string) (*domain.Event, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, e := range r.m.events {
		if strings.EqualFold(e.EventCode, code) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memEvents) EventCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByEventCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memEvents) UpdatePricing(ctx context.Context, eventID string, pricing domain.EventPricingPolicy) (*domain.Event, error) {
	r.m.mu.Lock()
	e, ok := r.m.events[eventID]
	if !ok {
		r.m.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	cp := *e
	cp.Pricing = pricing
	r.m.events[eventID] = &cp
	r.m.mu.Unlock()
	return r.GetByID(ctx, eventID)
}

type memCapacity struct{ m *memStore }

func (r *memCapacity) Reserve(ctx context.Context, eventID string, n int) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rem, ok := r.m.remaining[eventID]
	if !ok || rem < n {
		return false, nil
	}
	r.m.remaining[eventID] = rem - n
	return true, nil
}

type memCoupons struct{ m *memStore }

func (r *memCoupons) Create(ctx context.Context, c *domain.Coupon) error {
	r.m.addCoupon(c)
	return nil
}

func (r *memCoupons) FindByCode(ctx context.Context, eventID, code string) (*domain.Coupon, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, c := range r.m.coupons {
		if c.EventID == eventID && strings.EqualFold(c.Code, code) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memCoupons) IncrementUsage(ctx context.Context, couponID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.coupons[couponID]
	if !ok || !c.Active || !c.HasUsesLeft() {
		return false, nil
	}
	cp := *c
	cp.UsageCount++
	r.m.coupons[couponID] = &cp
	return true, nil
}

func (r *memCoupons) ListByEventID(ctx context.Context, eventID string) ([]*domain.Coupon, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Coupon
	for _, c := range r.m.coupons {
		if c.EventID == eventID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memRegs struct{ m *memStore }

func (r *memRegs) Create(ctx context.Context, reg *domain.Registration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.duplicateInserts > 0 {
		r.m.duplicateInserts--
		return domain.ErrDuplicateCode
	}
	for _, existing := range r.m.regs {
		if existing.ConfirmationCode == reg.ConfirmationCode {
			return domain.ErrDuplicateCode
		}
	}
	reg.ID = r.m.id("reg")
	cp := *reg
	r.m.regs[reg.ID] = &cp
	return nil
}

func (r *memRegs) CodeExists(ctx context.Context, code string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.codeExistsCalls++
	for _, reg := range r.m.regs {
		if reg.ConfirmationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRegs) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	reg, ok := r.m.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *memRegs) GetByConfirmationCode(ctx context.Context, code string) (*domain.Registration, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, reg := range r.m.regs {
		if reg.ConfirmationCode == code {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memRegs) UpdateStatus(ctx context.Context, id string, status domain.RegistrationStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	reg, ok := r.m.regs[id]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *reg
	cp.Status = status
	r.m.regs[id] = &cp
	return nil
}

func (r *memRegs) ListByEventID(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Registration
	for _, reg := range r.m.regs {
		if reg.EventID == eventID {
			cp := *reg
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

type memBalances struct{ m *memStore }

func (r *memBalances) Create(ctx context.Context, b *domain.PaymentBalance) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createBalanceErr != nil {
		return r.m.createBalanceErr
	}
	b.ID = r.m.id("bal")
	cp := *b
	r.m.balances[b.RegistrationID] = &cp
	return nil
}

func (r *memBalances) GetByRegistrationID(ctx context.Context, regID string) (*domain.PaymentBalance, error) {
	if b := r.m.balanceFor(regID); b != nil {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memBalances) Update(ctx context.Context, b *domain.PaymentBalance) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.balances[b.RegistrationID]; !ok {
		return domain.ErrNotFound
	}
	cp := *b
	r.m.balances[b.RegistrationID] = &cp
	return nil
}

type memPayments struct{ m *memStore }

func (r *memPayments) Create(ctx context.Context, p *domain.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.createPaymentErr != nil {
		return r.m.createPaymentErr
	}
	if p.GatewayIntentID != nil {
		for _, existing := range r.m.payments {
			if existing.GatewayIntentID != nil && *existing.GatewayIntentID == *p.GatewayIntentID {
				return fmt.Errorf("duplicate gateway_intent_id %s", *p.GatewayIntentID)
			}
		}
	}
	r.m.seq++
	p.ID = r.m.id("pay")
	cp := *p
	r.m.payments[p.ID] = &cp
	r.m.paymentOrder[p.ID] = r.m.seq
	return nil
}

func (r *memPayments) ListPendingByRegistrationID(ctx context.Context, regID string) ([]*domain.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*domain.Payment, 0)
	for _, p := range r.m.payments {
		if p.RegistrationID == regID && p.Method == domain.PaymentCard && p.Status == domain.PaymentRecordPending {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.m.paymentOrder[out[i].ID] < r.m.paymentOrder[out[j].ID] })
	return out, nil
}

func (r *memPayments) MarkFailed(ctx context.Context, id string) (bool, error) {
	return r.setStatus(id, domain.PaymentRecordFailed, domain.PaymentRecordPending)
}

func (r *memPayments) GetByGatewayIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.GatewayIntentID != nil && *p.GatewayIntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPayments) MarkSucceeded(ctx context.Context, id string) (bool, error) {
	return r.setStatus(id, domain.PaymentRecordSucceeded, domain.PaymentRecordPending, domain.PaymentRecordFailed)
}

func (r *memPayments) setStatus(id string, next domain.PaymentRecordStatus, from ...domain.PaymentRecordStatus) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok || !slices.Contains(from, p.Status) {
		return false, nil
	}
	cp := *p
	cp.Status = next
	r.m.payments[id] = &cp
	return true, nil
}

type memOrgs struct{ m *memStore }

func (r *memOrgs) Create(ctx context.Context, o *domain.Organization) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o.ID = r.m.id("org")
	cp := *o
	r.m.orgs[o.ID] = &cp
	return nil
}

func (r *memOrgs) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.orgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// fakeUnitOfWork serializes transactions and restores a snapshot when fn fails.
type fakeUnitOfWork struct{ m *memStore }

func (u *fakeUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, st domain.TxStores) error) error {
	u.m.txMu.Lock()
	defer u.m.txMu.Unlock()

	u.m.mu.Lock()
	regs := copyMap(u.m.regs)
	balances := copyMap(u.m.balances)
	payments := copyMap(u.m.payments)
	remaining := copyMap(u.m.remaining)
	u.m.mu.Unlock()

	err := fn(ctx, domain.TxStores{
		Registrations: u.m.registrationRepo(),
		Balances:      u.m.balanceRepo(),
		Payments:      u.m.paymentRepo(),
		Capacity:      u.m.capacityRepo(),
	})
	if err != nil {
		u.m.mu.Lock()
		u.m.regs, u.m.balances, u.m.payments, u.m.remaining = regs, balances, payments, remaining
		u.m.mu.Unlock()
	}
	return err
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// fakeGateway records charge intent requests. Like Stripe it replays the first intent for a
// repeated idempotency key.
type fakeGateway struct {
	mu        sync.Mutex
	requests  []domain.ChargeIntentRequest
	byKey     map[string]*domain.ChargeIntent
	expired   []string
	err       error
	expireErr error
	n         int
}

func (g *fakeGateway) CreateChargeIntent(ctx context.Context, req domain.ChargeIntentRequest) (*domain.ChargeIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if intent, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return intent, nil
	}
	g.n++
	id := fmt.Sprintf("cs_test_%d", g.n)
	intent := &domain.ChargeIntent{IntentID: id, RedirectURL: "https://checkout.test/" + id}
	if g.byKey == nil {
		g.byKey = make(map[string]*domain.ChargeIntent)
	}
	g.byKey[req.IdempotencyKey] = intent
	return intent, nil
}

func (g *fakeGateway) ExpireChargeIntent(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expireErr != nil {
		return g.expireErr
	}
	g.expired = append(g.expired, intentID)
	return nil
}

func (g *fakeGateway) ParseCompletion(payload []byte, signature string) (*domain.GatewayCompletion, error) {
	return nil, nil
}

func (g *fakeGateway) lastRequest() domain.ChargeIntentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type sentNotification struct {
	templateID string
	recipient  string
	data       any
}

// fakeNotifier records notifications and optionally fails.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, templateID, recipient string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{templateID: templateID, recipient: recipient, data: data})
	return n.err
}
