package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/x402guard/internal/domain/audit"
	"github.com/bryanwahyu/x402guard/internal/infra/upstream"
	"github.com/bryanwahyu/x402guard/internal/x402"
)

var ErrInvalidJSON = errors.New("invalid JSON")

// GatewayError means the backend could not be reached or read.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return "Failed to connect to API"
	}
	return e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Backend is the audit API the proxy forwards to.
type Backend interface {
	Audit(ctx context.Context, tier string, body []byte, header http.Header) (*upstream.Response, error)
}

// Response is what the route writes back: backend status, relayed
// payment headers and a JSON body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// request headers forwarded to the backend
var forwardHeaders = []string{x402.HeaderPaymentSignature, x402.HeaderXPayment}

// response headers relayed to the caller
var relayHeaders = []string{x402.HeaderPaymentRequired, x402.HeaderPaymentResponse, x402.HeaderWWWAuthenticate}

// Service implements the audit proxy use-case.
// Service is stateless and safe for concurrent use.
type Service struct {
	Backend Backend
	Logger  *zap.Logger
}

// Forward validates tier and body, relays the call and shapes the reply.
func (s *Service) Forward(ctx context.Context, tier string, body []byte, inbound http.Header) (*Response, error) {
	logger := s.logger().With(zap.String("tier", tier))

	t, err := audit.ParseTier(tier)
	if err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, ErrInvalidJSON
	}

	out := http.Header{}
	for _, name := range forwardHeaders {
		if v := x402.Lookup(inbound, name); v != "" {
			out.Set(name, v)
		}
	}
	logger.Debug("proxying audit",
		zap.Bool("payment_signature", out.Get(x402.HeaderPaymentSignature) != ""),
		zap.Bool("x_payment", out.Get(x402.HeaderXPayment) != ""))

	resp, err := s.Backend.Audit(ctx, string(t), compact.Bytes(), out)
	if err != nil {
		logger.Error("backend call failed", zap.Error(err))
		return nil, &GatewayError{Err: err}
	}

	res := &Response{StatusCode: resp.StatusCode, Header: http.Header{}, Body: resp.Body}
	if !json.Valid(res.Body) {
		res.Body = []byte("{}")
	}
	for _, name := range relayHeaders {
		if v := x402.Lookup(resp.Header, name); v != "" {
			res.Header.Set(name, v)
		}
	}

	logger.Info("backend responded", zap.Int("status", resp.StatusCode))

	if resp.StatusCode == http.StatusPaymentRequired {
		logChallenge(logger, res.Header.Get(x402.HeaderPaymentRequired))
	}
	return res, nil
}

// logChallenge decodes a 402 challenge for debugging only.
func logChallenge(logger *zap.Logger, header string) {
	if header == "" || !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	var pr x402.PaymentRequired
	if err := x402.DecodeHeader(header, &pr); err != nil {
		logger.Debug("could not decode payment challenge", zap.Error(err))
		return
	}
	networks := make([]string, 0, len(pr.Accepts))
	for _, a := range pr.Accepts {
		networks = append(networks, a.Network+"/"+a.Value())
	}
	logger.Debug("payment challenge",
		zap.Int("x402_version", pr.X402Version),
		zap.String("accepts", strings.Join(networks, ",")))
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
