package x402

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/bryanwahyu/x402guard/internal/wallet"
)

// ErrUnsupportedPayment means a 402 could not be answered: the challenge was
// unreadable or none of its requirements can be paid by this client.
var ErrUnsupportedPayment = errors.New("unsupported payment requirements")

// maxChallengeBody caps how much of a v1 402 body is read.
const maxChallengeBody = 1 << 20

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Client answers 402 responses by signing a payment with the wallet and
// retrying the request once with the proof attached. It is itself a Doer, so
// callers use it exactly like the plain client it wraps.
type Client struct {
	next     Doer
	signer   wallet.Signer
	clock    Clock
	random   io.Reader
	networks []string
	logger   *zap.Logger
}

type Option func(*Client)

func WithClock(c Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// WithRandom overrides the nonce source.
func WithRandom(r io.Reader) Option {
	return func(cl *Client) { cl.random = r }
}

// WithNetworks restricts payment to the given networks, in preference order.
func WithNetworks(networks ...string) Option {
	return func(cl *Client) { cl.networks = networks }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient wraps next. A nil next uses http.DefaultClient.
func NewClient(next Doer, signer wallet.Signer, opts ...Option) *Client {
	if next == nil {
		next = http.DefaultClient
	}
	c := &Client{
		next:   next,
		signer: signer,
		clock:  systemClock{},
		random: rand.Reader,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address of the paying wallet.
func (c *Client) Address() string {
	return c.signer.Address()
}

// Do sends req. On a 402 it signs the first acceptable requirement and
// returns the response of the single retried request; a second 402 is
// returned as is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	ctx := req.Context()
	trace := ContextClientTrace(ctx)

	resp, err := c.next.Do(req)
	if err != nil {
		return nil, err
	}
	if trace != nil && trace.GotFirstResponse != nil {
		trace.GotFirstResponse(resp.StatusCode)
	}
	if resp.StatusCode != http.StatusPaymentRequired || HasPayment(req.Header) {
		return resp, nil
	}

	challenge, err := readChallenge(resp)
	if err != nil {
		return nil, err
	}
	if trace != nil && trace.PaymentRequired != nil {
		trace.PaymentRequired(challenge)
	}

	accepted, err := c.selectRequirements(challenge)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("payment required",
		zap.Int("x402_version", challenge.X402Version),
		zap.String("network", accepted.Network),
		zap.String("amount", accepted.Value()),
		zap.String("pay_to", accepted.PayTo))

	name, proof, err := c.createPayment(ctx, challenge, accepted)
	if err != nil {
		return nil, err
	}
	if trace != nil && trace.PaymentSigned != nil {
		trace.PaymentSigned(accepted)
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set(name, proof)

	c.logger.Debug("retrying with payment", zap.String("header", name), zap.String("payer", c.signer.Address()))
	return c.next.Do(retry)
}

// createPayment signs accepted and returns the header name and value carrying the proof.
func (c *Client) createPayment(ctx context.Context, challenge *PaymentRequired, accepted Requirements) (string, string, error) {
	auth, err := NewAuthorization(c.signer.Address(), accepted, c.clock.Now(), c.random)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedPayment, err)
	}
	td, err := TypedData(accepted, auth)
	if err != nil {
		return "", "", err
	}

	sig, err := c.signer.SignTypedData(ctx, td)
	if err != nil {
		return "", "", fmt.Errorf("sign payment authorization: %w", err)
	}

	payload := PaymentPayload{
		X402Version: challenge.X402Version,
		Payload: ExactEVMPayload{
			Signature:     hexutil.Encode(sig),
			Authorization: auth,
		},
	}
	name := HeaderPaymentSignature
	if challenge.X402Version <= Version1 {
		payload.X402Version = Version1
		payload.Scheme = accepted.Scheme
		payload.Network = accepted.Network
		name = HeaderXPayment
	} else {
		payload.Resource = challenge.Resource
		payload.Accepted = &accepted
	}

	value, err := EncodeHeader(payload)
	if err != nil {
		return "", "", err
	}
	return name, value, nil
}

func (c *Client) selectRequirements(pr *PaymentRequired) (Requirements, error) {
	payable := func(r Requirements) bool {
		if r.Scheme != SchemeExact || r.Value() == "" {
			return false
		}
		_, ok := ChainID(r.Network)
		return ok
	}

	if len(c.networks) > 0 {
		for _, network := range c.networks {
			for _, r := range pr.Accepts {
				if r.Network == network && payable(r) {
					return r, nil
				}
			}
		}
		return Requirements{}, fmt.Errorf("%w: no requirement on networks %v", ErrUnsupportedPayment, c.networks)
	}

	for _, r := range pr.Accepts {
		if payable(r) {
			return r, nil
		}
	}
	return Requirements{}, fmt.Errorf("%w: no payable requirement among %d", ErrUnsupportedPayment, len(pr.Accepts))
}

// readChallenge decodes a 402 from the PAYMENT-REQUIRED header (v2) or the
// JSON body (v1). The response body is always closed.
func readChallenge(resp *http.Response) (*PaymentRequired, error) {
	defer resp.Body.Close()

	var pr PaymentRequired
	if hdr := Lookup(resp.Header, HeaderPaymentRequired); hdr != "" {
		if err := DecodeHeader(hdr, &pr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedPayment, err)
		}
		if pr.X402Version == 0 {
			pr.X402Version = Version2
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBody))
		if err != nil {
			return nil, fmt.Errorf("read 402 body: %w", err)
		}
		if err := json.Unmarshal(body, &pr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedPayment, err)
		}
		if pr.X402Version == 0 {
			pr.X402Version = Version1
		}
	}

	if len(pr.Accepts) == 0 {
		return nil, fmt.Errorf("%w: challenge lists no accepted payments", ErrUnsupportedPayment)
	}
	return &pr, nil
}

// bufferBody makes req replayable through GetBody.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return nil
}
