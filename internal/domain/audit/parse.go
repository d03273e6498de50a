package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendSafe, RecommendCaution, RecommendUnsafe:
		return true
	}
	return false
}

// Blocking reports whether the skill should not be installed.
func (r Recommendation) Blocking() bool {
	return r == RecommendUnsafe
}

// ParseResult decodes a backend body into a Result. Values outside the
// known enums are rejected rather than guessed.
func ParseResult(data []byte) (*Result, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformedResult)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if res.RiskScore < 0 || res.RiskScore > 100 {
		return nil, fmt.Errorf("%w: risk_score %v out of range", ErrMalformedResult, res.RiskScore)
	}
	if !res.RiskLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown risk_level %q", ErrMalformedResult, res.RiskLevel)
	}
	if !res.Recommendation.Valid() {
		return nil, fmt.Errorf("%w: unknown recommendation %q", ErrMalformedResult, res.Recommendation)
	}
	if res.Tier != "" && !res.Tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrMalformedResult, res.Tier)
	}
	return &res, nil
}

// ParsePaymentRequired decodes the JSON body of a 402 response.
func ParsePaymentRequired(data []byte) (*PaymentRequired, error) {
	var pr PaymentRequired
	if err := json.Unmarshal(bytes.TrimSpace(data), &pr); err != nil {
		return nil, fmt.Errorf("decode payment required: %w", err)
	}
	return &pr, nil
}

// RiskBand maps a score to a display colour.
func RiskBand(score float64) string {
	switch {
	case score < 25:
		return "green"
	case score < 50:
		return "yellow"
	case score < 75:
		return "orange"
	default:
		return "red"
	}
}
