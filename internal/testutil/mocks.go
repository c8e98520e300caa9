package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/domain/token"
	"github.com/storekit/paygate/internal/logsink"
	"github.com/storekit/paygate/internal/session"
)

// --- Order Store Mock ---

// MockOrderStore is an in-memory implementation of order.Store.
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[int64]*order.Order
	notes  map[int64][]string
	nextID int64

	GetFunc          func(ctx context.Context, id int64) (*order.Order, error)
	UpdateStatusFunc func(ctx context.Context, id int64, newStatus, expected order.Status) (bool, error)
	SetMetadataFunc  func(ctx context.Context, id int64, meta map[string]any) error
	AddNoteFunc      func(ctx context.Context, id int64, text string) error
	MarkPaidFunc     func(ctx context.Context, id int64, transactionID string) (bool, error)
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		orders: make(map[int64]*order.Order),
		notes:  make(map[int64][]string),
	}
}

// AddOrder pre-populates the store with an order.
func (m *MockOrderStore) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *MockOrderStore) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	m.orders[o.ID] = o
	return nil
}

func (m *MockOrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id int64, newStatus, expected order.Status) (bool, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, newStatus, expected)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, domainErrors.ErrOrderNotFound
	}
	if o.Status != expected {
		return false, nil
	}
	o.Status = newStatus
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockOrderStore) SetMetadata(ctx context.Context, id int64, meta map[string]any) error {
	if m.SetMetadataFunc != nil {
		return m.SetMetadataFunc(ctx, id, meta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domainErrors.ErrOrderNotFound
	}
	if o.Metadata == nil {
		o.Metadata = make(map[string]any)
	}
	for k, v := range meta {
		o.Metadata[k] = v
	}
	return nil
}

func (m *MockOrderStore) AddNote(ctx context.Context, id int64, text string) error {
	if m.AddNoteFunc != nil {
		return m.AddNoteFunc(ctx, id, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[id] = append(m.notes[id], text)
	return nil
}

func (m *MockOrderStore) MarkPaid(ctx context.Context, id int64, transactionID string) (bool, error) {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, id, transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, domainErrors.ErrOrderNotFound
	}
	if o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusPaid
	o.TransactionID = &transactionID
	o.UpdatedAt = time.Now()
	return true, nil
}

// Notes returns the recorded notes as domain objects.
func (m *MockOrderStore) Notes(_ context.Context, id int64) ([]*order.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := make([]*order.Note, 0, len(m.notes[id]))
	for i, text := range m.notes[id] {
		notes = append(notes, &order.Note{ID: int64(i + 1), OrderID: id, Text: text})
	}
	return notes, nil
}

// GetOrderByID returns the stored order (test helper, no context needed).
func (m *MockOrderStore) GetOrderByID(id int64) *order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

// NotesText returns the raw note texts recorded for an order (test helper).
func (m *MockOrderStore) NotesText(id int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes[id]
}

// --- Binding Store Mock ---

// MockBindingStore is an in-memory implementation of session.BindingStore.
type MockBindingStore struct {
	mu       sync.Mutex
	bindings map[string]session.Binding

	GetFunc   func(ctx context.Context, sessionID string) (*session.Binding, error)
	ClearFunc func(ctx context.Context, sessionID string) error
}

func NewMockBindingStore() *MockBindingStore {
	return &MockBindingStore{bindings: make(map[string]session.Binding)}
}

func (m *MockBindingStore) Get(ctx context.Context, sessionID string) (*session.Binding, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[sessionID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MockBindingStore) Put(ctx context.Context, sessionID string, b session.Binding, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[sessionID] = b
	return nil
}

func (m *MockBindingStore) Clear(ctx context.Context, sessionID string) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx, sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, sessionID)
	return nil
}

// Has reports whether a binding exists (test helper).
func (m *MockBindingStore) Has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bindings[sessionID]
	return ok
}

// --- Token Cache Mock ---

type cacheEntry struct {
	result    *token.ValidationResult
	expiresAt time.Time
}

// MemoryTokenCache is an in-memory implementation of cache.TokenCache.
type MemoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// SetClock replaces the cache's clock (test helper for TTL expiry).
func (c *MemoryTokenCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryTokenCache) Get(_ context.Context, key string) (*token.ValidationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	return e.result, nil
}

func (c *MemoryTokenCache) Put(_ context.Context, key string, result *token.ValidationResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryTokenCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len returns the number of live entries (test helper).
func (c *MemoryTokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// --- Rate Limiter Mock ---

// MemoryLimiter is an in-memory fixed-window limiter for tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	counts  map[string]int
	started map[string]time.Time
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		counts:  make(map[string]int),
		started: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock replaces the limiter's clock (test helper for window expiry).
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryLimiter) Allow(_ context.Context, actorID, action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := action + ":" + actorID
	if start, ok := l.started[key]; !ok || l.now().Sub(start) >= l.window {
		l.started[key] = l.now()
		l.counts[key] = 1
		return true
	}
	l.counts[key]++
	return l.counts[key] <= l.limit
}

// --- Log Sink Mock ---

// RecordingSink captures appended entries for assertions.
type RecordingSink struct {
	mu      sync.Mutex
	entries []logsink.Entry
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Append(_ context.Context, e logsink.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Entries returns a copy of everything appended so far.
func (s *RecordingSink) Entries() []logsink.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]logsink.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// --- Gateway Mock ---

// MockGateway is a scriptable gateway.Gateway implementation.
type MockGateway struct {
	mu    sync.Mutex
	calls int

	NameValue        string
	Available        bool
	ValidateFunc     func(ctx context.Context, t string, strict bool) (*token.ValidationResult, error)
	RedirectURLValue string
	RedirectURLErr   error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{NameValue: "mock", Available: true}
}

func (g *MockGateway) Name() string      { return g.NameValue }
func (g *MockGateway) IsAvailable() bool { return g.Available }

func (g *MockGateway) PaymentRedirectURL(_ *order.Order) (string, error) {
	return g.RedirectURLValue, g.RedirectURLErr
}

func (g *MockGateway) ValidateToken(ctx context.Context, t string, strict bool) (*token.ValidationResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.ValidateFunc != nil {
		return g.ValidateFunc(ctx, t, strict)
	}
	return nil, domainErrors.ErrTokenNotFound
}

// ValidateCalls returns how many times ValidateToken was invoked.
func (g *MockGateway) ValidateCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
