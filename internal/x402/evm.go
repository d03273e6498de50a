package x402

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// validAfter is backdated to tolerate clock skew with the facilitator.
	clockSkew = 600 * time.Second

	defaultTimeout = 60 * time.Second

	// USDC's EIP-712 domain, used when the server omits extra.
	defaultTokenName    = "USD Coin"
	defaultTokenVersion = "2"
)

var transferWithAuthorizationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TransferWithAuthorization": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

// NewAuthorization builds an EIP-3009 authorization from payer to the
// requirement's payTo, valid from now-10m until now+maxTimeoutSeconds.
func NewAuthorization(from string, req Requirements, now time.Time, random io.Reader) (Authorization, error) {
	if !common.IsHexAddress(from) {
		return Authorization{}, fmt.Errorf("invalid payer address %q", from)
	}
	if !common.IsHexAddress(req.PayTo) {
		return Authorization{}, fmt.Errorf("invalid payTo address %q", req.PayTo)
	}
	value, ok := new(big.Int).SetString(req.Value(), 10)
	if !ok || value.Sign() < 0 {
		return Authorization{}, fmt.Errorf("invalid amount %q", req.Value())
	}

	timeout := defaultTimeout
	if req.MaxTimeoutSeconds > 0 {
		timeout = time.Duration(req.MaxTimeoutSeconds) * time.Second
	}

	nonce := make([]byte, 32)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return Authorization{}, fmt.Errorf("generate nonce: %w", err)
	}

	return Authorization{
		From:        common.HexToAddress(from).Hex(),
		To:          common.HexToAddress(req.PayTo).Hex(),
		Value:       value.String(),
		ValidAfter:  strconv.FormatInt(now.Add(-clockSkew).Unix(), 10),
		ValidBefore: strconv.FormatInt(now.Add(timeout).Unix(), 10),
		Nonce:       hexutil.Encode(nonce),
	}, nil
}

// TypedData returns the EIP-712 TransferWithAuthorization document the
// wallet signs for req.
func TypedData(req Requirements, auth Authorization) (apitypes.TypedData, error) {
	chainID, ok := ChainID(req.Network)
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("%w: network %q", ErrUnsupportedPayment, req.Network)
	}
	if !common.IsHexAddress(req.Asset) {
		return apitypes.TypedData{}, fmt.Errorf("%w: asset %q", ErrUnsupportedPayment, req.Asset)
	}

	name, version := defaultTokenName, defaultTokenVersion
	if req.Extra != nil {
		if req.Extra.Name != "" {
			name = req.Extra.Name
		}
		if req.Extra.Version != "" {
			version = req.Extra.Version
		}
	}

	return apitypes.TypedData{
		Types:       transferWithAuthorizationTypes,
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: common.HexToAddress(req.Asset).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce,
		},
	}, nil
}
