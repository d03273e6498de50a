package x402

import "encoding/json"

const (
	Version1 = 1
	Version2 = 2

	SchemeExact = "exact"
)

// Resource describes what is being paid for.
type Resource struct {
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Requirements is one accepted way to pay. v2 servers send Amount, v1
// servers send MaxAmountRequired together with resource fields.
type Requirements struct {
	Scheme            string          `json:"scheme"`
	Network           string          `json:"network"`
	Amount            string          `json:"amount,omitempty"`
	MaxAmountRequired string          `json:"maxAmountRequired,omitempty"`
	Asset             string          `json:"asset"`
	PayTo             string          `json:"payTo"`
	MaxTimeoutSeconds int             `json:"maxTimeoutSeconds,omitempty"`
	Resource          string          `json:"resource,omitempty"`
	Description       string          `json:"description,omitempty"`
	MimeType          string          `json:"mimeType,omitempty"`
	Extra             *EIP712Extra    `json:"extra,omitempty"`
	OutputSchema      json.RawMessage `json:"outputSchema,omitempty"`
}

// Value returns the amount in atomic units regardless of protocol version.
func (r Requirements) Value() string {
	if r.Amount != "" {
		return r.Amount
	}
	return r.MaxAmountRequired
}

// EIP712Extra names the token's EIP-712 domain.
type EIP712Extra struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// PaymentRequired is the challenge sent with a 402.
type PaymentRequired struct {
	X402Version int            `json:"x402Version"`
	Error       string         `json:"error,omitempty"`
	Resource    *Resource      `json:"resource,omitempty"`
	Accepts     []Requirements `json:"accepts"`
}

// Authorization is the EIP-3009 TransferWithAuthorization message.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEVMPayload is the scheme-specific part of a payment proof.
type ExactEVMPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// PaymentPayload is the proof attached to the retried request. v1 uses
// Scheme and Network, v2 echoes the accepted requirements.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme,omitempty"`
	Network     string          `json:"network,omitempty"`
	Resource    *Resource       `json:"resource,omitempty"`
	Accepted    *Requirements   `json:"accepted,omitempty"`
	Payload     ExactEVMPayload `json:"payload"`
}

// SettleResponse is the receipt decoded from PAYMENT-RESPONSE.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
}
