// Package payment mensimulasikan gateway virtual-account: satu session per
// order selama menunggu pembayaran, deadline tetap, dan hook injeksi event
// yang setara webhook bank.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownBank = errors.New("unknown bank")

	// ErrSessionClosed: event untuk session yang sudah tidak ada ditolak.
	ErrSessionClosed = errors.New("payment session closed")
)

type Session struct {
	OrderID   string    `json:"order_id"`
	Bank      string    `json:"bank"`
	VANumber  string    `json:"va_number"`
	Deadline  time.Time `json:"deadline"`
	CreatedAt time.Time `json:"created_at"`
}

// Store menyimpan session; session dihancurkan begitu order keluar dari
// pending-payment dan tidak pernah dipakai ulang.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, orderID string) (Session, bool, error)
	Delete(ctx context.Context, orderID string) error
}

// ApplyFunc adalah jalur balik ke lifecycle manager saat event bank tiba.
// applied=false artinya event basi dan di-no-op-kan.
type ApplyFunc func(ctx context.Context, orderID string, success bool) (applied bool, err error)

type Simulator struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu    sync.RWMutex
	apply ApplyFunc
}

type SimulatorOption func(*Simulator)

func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

func NewSimulator(store Store, log *zap.Logger, opts ...SimulatorOption) *Simulator {
	s := &Simulator{store: store, log: log.Named("payment-sim"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind memasang jalur applyGatewayEvent; dipanggil sekali saat wiring.
func (s *Simulator) Bind(apply ApplyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply = apply
}

// OpenSession menerbitkan nomor VA untuk order. Deadline ditetapkan saat
// pembuatan dan tidak pernah diperpanjang.
func (s *Simulator) OpenSession(ctx context.Context, orderID, bank string, deadline time.Time) (string, error) {
	bank = strings.ToLower(bank)
	if !KnownBank(bank) {
		return "", fmt.Errorf("%w: %q", ErrUnknownBank, bank)
	}
	sess := Session{
		OrderID:   orderID,
		Bank:      bank,
		VANumber:  VirtualAccountNumber(bank, orderID),
		Deadline:  deadline,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("create payment session: %w", err)
	}
	return sess.VANumber, nil
}

// CheckStatus: poll idempotent tanpa efek samping.
func (s *Simulator) CheckStatus(ctx context.Context, orderID string) (Session, bool, error) {
	return s.store.Get(ctx, orderID)
}

// SessionLive: session masih ada dan belum lewat deadline.
func (s *Simulator) SessionLive(ctx context.Context, orderID string) (bool, error) {
	sess, ok, err := s.store.Get(ctx, orderID)
	if err != nil || !ok {
		return false, err
	}
	return !s.now().After(sess.Deadline), nil
}

func (s *Simulator) CloseSession(ctx context.Context, orderID string) error {
	return s.store.Delete(ctx, orderID)
}

// InjectEvent: hook simulasi yang setara webhook bank. Event untuk session
// yang sudah ditutup ditolak; selebihnya keputusan ada di lifecycle manager.
func (s *Simulator) InjectEvent(ctx context.Context, orderID string, success bool) (bool, error) {
	s.mu.RLock()
	apply := s.apply
	s.mu.RUnlock()
	if apply == nil {
		return false, errors.New("simulator not bound to order lifecycle")
	}

	_, ok, err := s.store.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrSessionClosed
	}
	return apply(ctx, orderID, success)
}

// MemoryStore: penyimpanan session in-process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.OrderID] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, orderID string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[orderID]
	return s, ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, orderID)
	return nil
}
