package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/x402guard/internal/domain/audit"
	"github.com/bryanwahyu/x402guard/internal/wallet"
	"github.com/bryanwahyu/x402guard/internal/x402"
)

const maxResponseBody = 4 << 20

// User-facing messages.
const (
	MsgRejected         = "Payment signature rejected by user"
	MsgConnectionFailed = "Failed to connect to API"
	MsgUnknownError     = "Unknown error"
	MsgInvalidResult    = "Invalid audit result from API"
)

// Response is the outcome of a single audit call. Exactly one of Data,
// PaymentRequired or Error is set.
type Response struct {
	Success         bool
	Data            *audit.Result
	PaymentRequired *audit.PaymentRequired
	PaymentDetails  *audit.PaymentDetails
	Error           string
}

// Client posts audits to the proxy route.
type Client struct {
	BaseURL string
	Logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Logger: logger}
}

// RunAudit sends req for tier through doer, normally a payment client, and
// maps every outcome to a Response. It never returns an error.
func (c *Client) RunAudit(ctx context.Context, doer x402.Doer, tier audit.Tier, req audit.Request) Response {
	body, err := json.Marshal(req.Normalized())
	if err != nil {
		return Response{Error: err.Error()}
	}

	endpoint := fmt.Sprintf("%s/api/audit/%s", c.BaseURL, url.PathEscape(string(tier)))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{Error: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.Logger.Debug("running audit", zap.String("tier", string(tier)), zap.String("url", endpoint))

	resp, err := doer.Do(httpReq)
	if err != nil {
		c.Logger.Warn("audit request failed", zap.String("tier", string(tier)), zap.Error(err))
		return Response{Error: errorMessage(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Response{Error: errorMessage(err)}
	}

	c.Logger.Debug("audit response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(data)))

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		// payment client harusnya sudah handle 402
		pr, err := audit.ParsePaymentRequired(data)
		if err != nil {
			pr = &audit.PaymentRequired{}
		}
		return Response{PaymentRequired: pr}

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result, err := audit.ParseResult(data)
		if err != nil {
			c.Logger.Warn("invalid audit result", zap.Error(err))
			return Response{Error: MsgInvalidResult}
		}
		details, err := x402.DecodePaymentResponse(resp.Header)
		if err != nil {
			c.Logger.Debug("could not decode payment response header", zap.Error(err))
		}
		return Response{Success: true, Data: result, PaymentDetails: details}

	default:
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return Response{Error: apiErr.Error}
		}
		return Response{Error: MsgUnknownError}
	}
}

// IsRejected reports whether err is a declined wallet signature.
func IsRejected(err error) bool {
	return errors.Is(err, wallet.ErrRejected) || strings.Contains(err.Error(), "rejected")
}

func errorMessage(err error) string {
	if IsRejected(err) {
		return MsgRejected
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return MsgConnectionFailed
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgConnectionFailed
}
