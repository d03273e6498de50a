package x402

import (
	"fmt"
	"net/http"

	"github.com/bryanwahyu/x402guard/internal/domain/audit"
)

// DecodePaymentResponse extracts the settlement receipt from h. It returns
// nil, nil when no receipt header is present.
func DecodePaymentResponse(h http.Header) (*audit.PaymentDetails, error) {
	hdr := Lookup(h, HeaderPaymentResponse, HeaderXPaymentResponse)
	if hdr == "" {
		return nil, nil
	}

	var settle SettleResponse
	if err := DecodeHeader(hdr, &settle); err != nil {
		return nil, fmt.Errorf("payment response: %w", err)
	}
	return &audit.PaymentDetails{
		TransactionHash: settle.Transaction,
		Payer:           settle.Payer,
		Network:         settle.Network,
	}, nil
}
