package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/bitcoin"
	"github.com/joao-fontenele/glassworks-checkout/internal/payment/card"
)

type memCatalog struct {
	mu      sync.Mutex
	designs map[int64]*domain.Design
	sizes   map[int64]*domain.SizeOption
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		designs: map[int64]*domain.Design{
			1: {ID: 1, Title: "Genesis Block", Description: "First block", ImageURL: "https://img/1.jpg"},
			2: {ID: 2, Title: "Digital Gold", Description: "Gold", ImageURL: "https://img/2.jpg"},
		},
		sizes: map[int64]*domain.SizeOption{
			1: {ID: 1, Name: "6 Inch Glass Art", Size: "6", Price: decimal.RequireFromString("149.99")},
			2: {ID: 2, Name: "12 Inch Glass Art", Size: "12", Price: decimal.RequireFromString("299.99")},
			3: {ID: 3, Name: "15 Inch Glass Art", Size: "15", Price: decimal.RequireFromString("449.99")},
		},
	}
}

func (c *memCatalog) GetDesign(_ context.Context, id int64) (*domain.Design, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.designs[id], nil
}

func (c *memCatalog) GetSizeOption(_ context.Context, id int64) (*domain.SizeOption, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizes[id], nil
}

func (c *memCatalog) deleteSize(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sizes, id)
}

func (c *memCatalog) setPrice(id int64, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizes[id].Price = decimal.RequireFromString(price)
}

type stubRates struct {
	calls   atomic.Int32
	options []domain.ShippingOption
}

func (r *stubRates) GetShippingOptions(_ context.Context, _, _ string) ([]domain.ShippingOption, error) {
	r.calls.Add(1)
	return r.options, nil
}

type fakeCard struct {
	mu      sync.Mutex
	seq     int
	intents map[string]*domain.CardIntent
	keys    map[string]string
	err     error
}

func newFakeCard() *fakeCard {
	return &fakeCard{intents: map[string]*domain.CardIntent{}, keys: map[string]string{}}
}

func (f *fakeCard) CreateIntent(_ context.Context, amount int64, meta map[string]string, key string) (*domain.CardIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if id, ok := f.keys[key]; ok {
		return f.intents[id], nil
	}
	if amount < card.MinimumChargeMinorUnits {
		amount = card.MinimumChargeMinorUnits
	}
	f.seq++
	id := fmt.Sprintf("pi_%d", f.seq)
	f.intents[id] = &domain.CardIntent{
		ProviderIntentID:       id,
		ClientSecret:           id + "_secret",
		Status:                 domain.IntentStatusRequiresPayment,
		ChargeAmountMinorUnits: amount,
		Metadata:               meta,
	}
	f.keys[key] = id
	return f.intents[id], nil
}

func (f *fakeCard) RetrieveIntent(_ context.Context, id string) (*domain.CardIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	intent, ok := f.intents[id]
	if !ok {
		return nil, card.ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (f *fakeCard) setStatus(id string, status domain.IntentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Status = status
}

type fakeBitcoin struct {
	mu       sync.Mutex
	seq      int
	invoices map[string]*domain.BitcoinInvoice
	gets     int
	err      error
	now      func() time.Time
}

func newFakeBitcoin() *fakeBitcoin {
	return &fakeBitcoin{invoices: map[string]*domain.BitcoinInvoice{}, now: time.Now}
}

func (f *fakeBitcoin) CreateInvoice(_ context.Context, amount int64, _, _ string, meta map[string]string) (*domain.BitcoinInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.seq++
	id := fmt.Sprintf("inv_%d", f.seq)
	f.invoices[id] = &domain.BitcoinInvoice{
		InvoiceID:        id,
		Status:           domain.InvoiceStatusPending,
		AmountMinorUnits: amount,
		ExpiresAt:        f.now().Add(bitcoin.InvoiceLifetime),
		Metadata:         meta,
	}
	cp := *f.invoices[id]
	return &cp, nil
}

func (f *fakeBitcoin) GetInvoice(_ context.Context, id string) (*domain.BitcoinInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	inv, ok := f.invoices[id]
	if !ok {
		return nil, bitcoin.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeBitcoin) setStatus(id string, status domain.InvoiceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices[id].Status = status
}

// memOrders enforces one order per provider reference, like the unique index.
type memOrders struct {
	mu      sync.Mutex
	byID    map[string]*domain.Order
	byRef   map[string]string
	inserts atomic.Int32
	// lookupErr fails FindByProviderReference, like an unreachable database.
	lookupErr error
	// afterInsert runs once an order has been committed.
	afterInsert func()
}

func newMemOrders() *memOrders {
	return &memOrders{byID: map[string]*domain.Order{}, byRef: map[string]string{}}
}

func (m *memOrders) CreateOrGet(_ context.Context, order *domain.Order) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byRef[order.ProviderReferenceID]; ok {
		cp := *m.byID[id]
		return &cp, false, nil
	}
	m.inserts.Add(1)
	order.ID = uuid.New().String()
	order.Number = int64(len(m.byID) + 1)
	order.CreatedAt = time.Now()
	cp := *order
	m.byID[order.ID] = &cp
	m.byRef[order.ProviderReferenceID] = order.ID
	if m.afterInsert != nil {
		m.afterInsert()
	}
	return order, true, nil
}

func (m *memOrders) FindByProviderReference(_ context.Context, ref string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	id, ok := m.byRef[ref]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memOrders) GetWithDetails(_ context.Context, id string) (*domain.OrderDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &domain.OrderDetails{Order: &cp}, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (m *memOrders) setLookupErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupErr = err
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memAttempts struct {
	mu        sync.Mutex
	status    map[string]AttemptStatus
	artifacts map[string]*ArtifactRecord
}

func newMemAttempts() *memAttempts {
	return &memAttempts{status: map[string]AttemptStatus{}, artifacts: map[string]*ArtifactRecord{}}
}

func (m *memAttempts) Open(_ context.Context, id string) (AttemptStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.status[id]; !ok {
		m.status[id] = AttemptOpen
	}
	return m.status[id], nil
}

func (m *memAttempts) RecordArtifact(_ context.Context, rec ArtifactRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[rec.CheckoutID] == AttemptCompleted {
		return ErrCheckoutCompleted
	}
	for _, a := range m.artifacts {
		if a.CheckoutID == rec.CheckoutID && a.Reference != rec.Reference {
			a.Superseded = true
		}
	}
	cp := rec
	m.artifacts[rec.Reference] = &cp
	m.status[rec.CheckoutID] = AttemptAwaitingPayment
	return nil
}

func (m *memAttempts) Artifact(_ context.Context, ref string) (*ArtifactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[ref]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAttempts) Finish(_ context.Context, id string, status AttemptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[id] != AttemptCompleted {
		m.status[id] = status
	}
	return nil
}

func (m *memAttempts) statusOf(id string) AttemptStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[id]
}

type recordingNotifier struct {
	mu              sync.Mutex
	manufacturer    int
	customer        int
	failManufacture bool
	ctxErrs         []error
}

func (n *recordingNotifier) NotifyManufacturer(ctx context.Context, _ *domain.OrderDetails) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.manufacturer++
	if err := ctx.Err(); err != nil {
		n.ctxErrs = append(n.ctxErrs, err)
		return err
	}
	if n.failManufacture {
		return errors.New("smtp down")
	}
	return nil
}

func (n *recordingNotifier) NotifyCustomer(ctx context.Context, _ *domain.OrderDetails) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.customer++
	if err := ctx.Err(); err != nil {
		n.ctxErrs = append(n.ctxErrs, err)
		return err
	}
	return nil
}

type fixture struct {
	svc      *Service
	catalog  *memCatalog
	rates    *stubRates
	card     *fakeCard
	bitcoin  *fakeBitcoin
	orders   *memOrders
	attempts *memAttempts
	notifier *recordingNotifier
}

func newFixture() *fixture {
	f := &fixture{
		catalog: newMemCatalog(),
		rates: &stubRates{options: []domain.ShippingOption{
			{Service: domain.ShippingServiceStandard, Price: decimal.RequireFromString("15.00")},
			{Service: domain.ShippingServiceExpress, Price: decimal.RequireFromString("35.00")},
		}},
		card:     newFakeCard(),
		bitcoin:  newFakeBitcoin(),
		orders:   newMemOrders(),
		attempts: newMemAttempts(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(Deps{
		Catalog:  f.catalog,
		Rates:    f.rates,
		Card:     f.card,
		Bitcoin:  f.bitcoin,
		Orders:   f.orders,
		Attempts: f.attempts,
		Notifier: f.notifier,
	}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func testCustomer() domain.Customer {
	return domain.Customer{
		Name:       "Sam Rivera",
		Email:      "sam@example.com",
		Address:    "1 Main St, Beverly Hills, CA 90210",
		PostalCode: "90210",
	}
}
