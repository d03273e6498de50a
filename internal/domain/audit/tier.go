package audit

import (
	"fmt"
	"strings"
)

// TierConfig is the client-facing metadata of a tier. Static, never fetched
// from the backend.
type TierConfig struct {
	ID          Tier     `json:"id"`
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	PriceNum    float64  `json:"priceNum"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular,omitempty"`
}

// Tiers in display order.
var Tiers = []TierConfig{
	{
		ID:          TierQuick,
		Name:        "Quick",
		Price:       "$0.05",
		PriceNum:    0.05,
		Description: "Fast YARA scan",
		Features: []string{
			"YARA malware detection",
			"Risk score (0-100)",
			"Risk level classification",
			"Basic recommendation",
		},
	},
	{
		ID:          TierStandard,
		Name:        "Standard",
		Price:       "$0.15",
		PriceNum:    0.15,
		Description: "Full analysis",
		Features: []string{
			"All Quick features",
			"Permission analysis",
			"Network call detection",
			"Detailed findings report",
		},
		Popular: true,
	},
	{
		ID:          TierDeep,
		Name:        "Deep",
		Price:       "$0.50",
		PriceNum:    0.50,
		Description: "Complete audit",
		Features: []string{
			"All Standard features",
			"Behavioral sandbox",
			"Signed attestation",
			"Full audit trail",
		},
	},
}

// DefaultTier dipakai kalau user tidak memilih
const DefaultTier = TierStandard

func (t Tier) Valid() bool {
	switch t {
	case TierQuick, TierStandard, TierDeep:
		return true
	}
	return false
}

// ParseTier accepts exactly quick, standard or deep. Matching is
// case-sensitive, same as the backend route.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

// TierByID looks up the static metadata for t.
func TierByID(t Tier) (TierConfig, bool) {
	for _, c := range Tiers {
		if c.ID == t {
			return c, true
		}
	}
	return TierConfig{}, false
}
