// Package wallet provides the signing capability the payment client needs:
// an address and EIP-712 typed-data signatures.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ErrRejected is returned when the wallet owner declines to sign.
var ErrRejected = errors.New("user rejected the request")

// Signer port (interface untuk wallet yang terhubung)
type Signer interface {
	Address() string
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// Connection is the current wallet connection. A zero Connection is disconnected.
type Connection struct {
	Address string
	Signer  Signer
}

func (c Connection) Connected() bool {
	return c.Address != ""
}

// ConfirmFunc asks the wallet owner to approve a signature.
type ConfirmFunc func(ctx context.Context, data apitypes.TypedData) (bool, error)

// ConfirmingSigner asks for approval before every signature. A declined
// prompt surfaces as ErrRejected.
type ConfirmingSigner struct {
	Signer  Signer
	Confirm ConfirmFunc
}

func (c *ConfirmingSigner) Address() string {
	return c.Signer.Address()
}

func (c *ConfirmingSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	if c.Confirm != nil {
		ok, err := c.Confirm(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("confirm signature: %w", err)
		}
		if !ok {
			return nil, ErrRejected
		}
	}
	return c.Signer.SignTypedData(ctx, data)
}
