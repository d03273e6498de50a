package scan

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/bryanwahyu/x402guard/internal/domain/audit"
	"github.com/bryanwahyu/x402guard/internal/payment"
	"github.com/bryanwahyu/x402guard/internal/x402"
)

// State enum
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingSignature State = "awaiting_signature"
	StateProcessing        State = "processing"
	StateSuccess           State = "success"
	StateError             State = "error"
)

// Busy reports whether a scan is in flight.
func (s State) Busy() bool {
	return s == StateAwaitingSignature || s == StateProcessing
}

// Guard messages; the state is left untouched when one of these is returned.
const (
	MsgNotConnected  = "Please connect your wallet first"
	MsgNotReady      = "Payment client not ready. Please try again."
	MsgMissingInput  = "Please provide a skill URL or skill content"
	MsgInvalidURL    = "Please provide a valid http(s) skill URL"
	MsgInvalidTier   = "Invalid audit tier"
	MsgPaymentFailed = "Payment failed. Please ensure you have sufficient USDC on Base."
)

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrScanInProgress     = errors.New("scan already in progress")
)

// Adapter is the payment side the flow depends on. *payment.Session satisfies it.
// Connected and Fetcher are separate: a wallet can be connected while its
// payment client is still initializing or failed to initialize.
type Adapter interface {
	Connected() bool
	Fetcher() (x402.Doer, bool)
}

// Snapshot is what a caller displays.
type Snapshot struct {
	State   State                 `json:"state"`
	Message string                `json:"message,omitempty"`
	Tier    audit.Tier            `json:"tier,omitempty"`
	Result  *audit.Result         `json:"result,omitempty"`
	Payment *audit.PaymentDetails `json:"payment,omitempty"`
}

// Flow runs one scan at a time against the connected wallet.
type Flow struct {
	adapter Adapter
	client  *Client
	logger  *zap.Logger

	mu       sync.Mutex
	snap     Snapshot
	onChange func(Snapshot)
}

func NewFlow(adapter Adapter, client *Client, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{adapter: adapter, client: client, logger: logger, snap: Snapshot{State: StateIdle}}
}

// OnChange registers fn to receive every state transition.
func (f *Flow) OnChange(fn func(Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = fn
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

// Reset returns to idle unless a scan is in flight.
func (f *Flow) Reset() {
	f.update(func(s *Snapshot) bool {
		if s.State.Busy() {
			return false
		}
		*s = Snapshot{State: StateIdle}
		return true
	})
}

// Trigger validates the input and runs a paid scan to completion. Guard
// failures return an error without touching the state; every other outcome
// ends in success or error and is reported through the returned Snapshot.
func (f *Flow) Trigger(ctx context.Context, tier audit.Tier, req audit.Request) (Snapshot, error) {
	doer, err := f.begin(tier, req)
	if err != nil {
		return f.Snapshot(), err
	}

	ctx = x402.WithClientTrace(ctx, &x402.ClientTrace{
		GotFirstResponse: func(status int) {
			// no 402 means no signature to wait for
			if status != http.StatusPaymentRequired {
				f.advance(StateAwaitingSignature, StateProcessing)
			}
		},
		PaymentSigned: func(x402.Requirements) { f.advance(StateAwaitingSignature, StateProcessing) },
	})

	resp := f.client.RunAudit(ctx, doer, tier, req)
	f.advance(StateAwaitingSignature, StateProcessing)

	var final Snapshot
	f.update(func(s *Snapshot) bool {
		switch {
		case resp.Success && resp.Data != nil:
			s.State = StateSuccess
			s.Result = resp.Data
			s.Payment = resp.PaymentDetails
		case resp.Error != "":
			s.State = StateError
			s.Message = resp.Error
		default:
			s.State = StateError
			s.Message = MsgPaymentFailed
		}
		final = *s
		return true
	})

	f.logger.Info("scan finished",
		zap.String("tier", string(tier)),
		zap.String("state", string(final.State)),
		zap.String("message", final.Message))
	return final, nil
}

// begin applies the guards and, if they pass, enters awaiting_signature.
func (f *Flow) begin(tier audit.Tier, req audit.Request) (x402.Doer, error) {
	var doer x402.Doer
	var guardErr error

	f.update(func(s *Snapshot) bool {
		if s.State.Busy() {
			guardErr = ErrScanInProgress
			return false
		}

		msg := ""
		switch {
		case !f.adapter.Connected():
			msg, guardErr = MsgNotConnected, ErrWalletNotConnected
		default:
			d, ok := f.adapter.Fetcher()
			if !ok {
				msg, guardErr = MsgNotReady, payment.ErrNotReady
				break
			}
			doer = d
			if !tier.Valid() {
				msg, guardErr = MsgInvalidTier, audit.ErrInvalidTier
				break
			}
			if err := req.Validate(); err != nil {
				guardErr = err
				msg = MsgMissingInput
				if errors.Is(err, audit.ErrInvalidSkillURL) {
					msg = MsgInvalidURL
				}
			}
		}
		if guardErr != nil {
			s.Message = msg
			return true
		}

		*s = Snapshot{State: StateAwaitingSignature, Tier: tier}
		return true
	})

	if guardErr != nil {
		f.logger.Debug("scan rejected", zap.Error(guardErr))
		return nil, guardErr
	}
	return doer, nil
}

func (f *Flow) advance(from, to State) {
	f.update(func(s *Snapshot) bool {
		if s.State != from {
			return false
		}
		s.State = to
		return true
	})
}

// update mutates the snapshot under lock and notifies the observer outside it.
func (f *Flow) update(fn func(s *Snapshot) bool) {
	f.mu.Lock()
	changed := fn(&f.snap)
	snap, notify := f.snap, f.onChange
	f.mu.Unlock()

	if changed && notify != nil {
		notify(snap)
	}
}
