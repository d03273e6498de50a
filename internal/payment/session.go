// Package payment owns the wallet-derived payment client for the active
// wallet connection.
package payment

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/bryanwahyu/x402guard/internal/wallet"
	"github.com/bryanwahyu/x402guard/internal/x402"
)

var (
	// ErrInitInProgress is returned by Sync while another initialization is pending.
	ErrInitInProgress = errors.New("payment client initialization already in progress")

	// ErrInitFailed wraps the reason the last initialization failed.
	ErrInitFailed = errors.New("failed to initialize payment client")

	ErrNotReady = errors.New("payment client not ready")
)

// Session builds the paying client when a wallet connects, rebuilds it when
// the address or signer changes and drops it on disconnect. At most one
// initialization runs at a time; overlapping Sync calls are suppressed.
type Session struct {
	base   x402.Doer
	opts   []x402.Option
	logger *zap.Logger

	mu           sync.Mutex
	connected    string
	initializing bool
	generation   uint64
	client       *x402.Client
	address      string
	signer       wallet.Signer
	err          error
}

// NewSession returns a disconnected session. base is the plain client the
// payment client wraps; opts are passed to every x402.NewClient call.
func NewSession(base x402.Doer, logger *zap.Logger, opts ...x402.Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{base: base, opts: opts, logger: logger}
}

// Sync brings the session in line with conn.
func (s *Session) Sync(ctx context.Context, conn wallet.Connection) error {
	if !conn.Connected() {
		s.Dispose()
		return nil
	}

	s.mu.Lock()
	s.connected = conn.Address
	if s.initializing {
		s.mu.Unlock()
		s.logger.Debug("skipping payment client init, already in progress")
		return ErrInitInProgress
	}
	if s.client != nil && strings.EqualFold(s.address, conn.Address) && sameSigner(s.signer, conn.Signer) {
		s.mu.Unlock()
		return nil
	}
	s.initializing = true
	gen := s.generation
	s.mu.Unlock()

	client, err := s.build(ctx, conn)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// disconnected while building
		return nil
	}
	s.initializing = false
	if err != nil {
		s.client = nil
		s.address = ""
		s.signer = nil
		s.err = fmt.Errorf("%w: %v", ErrInitFailed, err)
		s.logger.Warn("payment client init failed", zap.String("address", conn.Address), zap.Error(err))
		return s.err
	}

	s.client = client
	s.address = conn.Address
	s.signer = conn.Signer
	s.err = nil
	s.logger.Info("payment client ready", zap.String("address", conn.Address))
	return nil
}

func (s *Session) build(ctx context.Context, conn wallet.Connection) (*x402.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if conn.Signer == nil {
		return nil, errors.New("signer unavailable")
	}
	if addr := conn.Signer.Address(); !strings.EqualFold(addr, conn.Address) {
		return nil, fmt.Errorf("signer address %s does not match connected address %s", addr, conn.Address)
	}
	opts := append([]x402.Option{x402.WithLogger(s.logger)}, s.opts...)
	return x402.NewClient(s.base, conn.Signer, opts...), nil
}

// Dispose drops the client and abandons any pending initialization.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.logger.Info("payment client disposed", zap.String("address", s.address))
	}
	s.generation++
	s.connected = ""
	s.initializing = false
	s.client = nil
	s.address = ""
	s.signer = nil
	s.err = nil
}

// Fetcher returns the paying client, or false when no wallet is ready.
func (s *Session) Fetcher() (x402.Doer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, false
	}
	return s.client, true
}

func (s *Session) Ready() bool {
	_, ok := s.Fetcher()
	return ok
}

// Connected reports whether a wallet is connected, whether or not its
// payment client is ready.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected != ""
}

// Address returns the wallet address the current client was built for.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Err returns the last initialization failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func sameSigner(a, b wallet.Signer) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
