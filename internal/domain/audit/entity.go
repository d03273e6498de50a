package audit

// Tier enum
type Tier string

const (
	TierQuick    Tier = "quick"
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// RiskLevel enum, ditentukan oleh backend
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Recommendation enum. Only these three values are accepted from the backend.
type Recommendation string

const (
	RecommendSafe    Recommendation = "SAFE"
	RecommendCaution Recommendation = "CAUTION"
	RecommendUnsafe  Recommendation = "UNSAFE"
)

// Request is the scan input posted to /audit/{tier}.
type Request struct {
	SkillURL     string `json:"skill_url,omitempty"`
	SkillContent string `json:"skill_content,omitempty"`
}

// Findings value object
type Findings struct {
	Malware     []string `json:"malware"`
	Credentials []string `json:"credentials"`
	Network     []string `json:"network"`
	Permissions []string `json:"permissions"`
}

// Total jumlah semua finding
func (f Findings) Total() int {
	return len(f.Malware) + len(f.Credentials) + len(f.Network) + len(f.Permissions)
}

// Result is the backend's scan output. RiskScore and RiskLevel are
// authoritative and never recomputed here.
type Result struct {
	RiskScore      float64        `json:"risk_score"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Recommendation Recommendation `json:"recommendation"`
	Findings       Findings       `json:"findings"`
	AuditID        string         `json:"audit_id"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Tier           Tier           `json:"tier,omitempty"`
	Attestation    string         `json:"attestation,omitempty"`
}

// PaymentTerms is the accepted-payment descriptor of a 402 body.
type PaymentTerms struct {
	Chain     string `json:"chain"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

// PaymentRequired is the decoded 402 payload. Only meaningful with status 402.
type PaymentRequired struct {
	Description string        `json:"description,omitempty"`
	Accepts     *PaymentTerms `json:"accepts,omitempty"`
}

// PaymentDetails is the receipt carried in the PAYMENT-RESPONSE header.
type PaymentDetails struct {
	TransactionHash string `json:"transactionHash,omitempty"`
	Payer           string `json:"payer,omitempty"`
	Network         string `json:"network,omitempty"`
}
