package audit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{in: "quick", want: TierQuick},
		{in: "standard", want: TierStandard},
		{in: "deep", want: TierDeep},
		{in: "Deep", wantErr: true},
		{in: "premium", wantErr: true},
		{in: "", wantErr: true},
		{in: "../deep", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTier(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTier) {
					t.Fatalf("ParseTier(%q) error = %v, want ErrInvalidTier", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTier(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTierByID(t *testing.T) {
	cfg, ok := TierByID(TierStandard)
	if !ok {
		t.Fatal("standard tier not found")
	}
	if cfg.Price != "$0.15" || !cfg.Popular {
		t.Errorf("unexpected standard tier: %+v", cfg)
	}

	if _, ok := TierByID("premium"); ok {
		t.Error("expected unknown tier lookup to fail")
	}
	if len(Tiers) != 3 {
		t.Errorf("expected 3 tiers, got %d", len(Tiers))
	}
}

func TestParseResult(t *testing.T) {
	body := []byte(`{
		"risk_score": 12,
		"risk_level": "LOW",
		"recommendation": "SAFE",
		"findings": {"malware": [], "credentials": [], "network": ["api.weather.gov"], "permissions": ["network"]},
		"audit_id": "aud_abc123",
		"timestamp": "2026-01-02T03:04:05Z",
		"tier": "standard"
	}`)

	got, err := ParseResult(body)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}

	want := &Result{
		RiskScore:      12,
		RiskLevel:      RiskLow,
		Recommendation: RecommendSafe,
		Findings: Findings{
			Malware:     []string{},
			Credentials: []string{},
			Network:     []string{"api.weather.gov"},
			Permissions: []string{"network"},
		},
		AuditID:   "aud_abc123",
		Timestamp: "2026-01-02T03:04:05Z",
		Tier:      TierStandard,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseResult mismatch (-want +got):\n%s", diff)
	}
	if got.Findings.Total() != 2 {
		t.Errorf("Findings.Total() = %d, want 2", got.Findings.Total())
	}
}

func TestParseResult_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":                  ``,
		"array":                  `[]`,
		"not json":               `<html>`,
		"score out of range":     `{"risk_score":101,"risk_level":"LOW","recommendation":"SAFE"}`,
		"negative score":         `{"risk_score":-1,"risk_level":"LOW","recommendation":"SAFE"}`,
		"unknown level":          `{"risk_score":10,"risk_level":"SEVERE","recommendation":"SAFE"}`,
		"dangerous recommended":  `{"risk_score":90,"risk_level":"CRITICAL","recommendation":"DANGEROUS"}`,
		"blocked recommendation": `{"risk_score":90,"risk_level":"CRITICAL","recommendation":"BLOCKED"}`,
		"unknown tier":           `{"risk_score":10,"risk_level":"LOW","recommendation":"SAFE","tier":"gold"}`,
		"score wrong type":       `{"risk_score":"high","risk_level":"LOW","recommendation":"SAFE"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := ParseResult([]byte(body))
			if !errors.Is(err, ErrMalformedResult) {
				t.Fatalf("expected ErrMalformedResult, got res=%v err=%v", res, err)
			}
		})
	}
}

func TestParsePaymentRequired(t *testing.T) {
	got, err := ParsePaymentRequired([]byte(`{"description":"Standard audit","accepts":{"chain":"base","token":"USDC","amount":"150000","recipient":"0x1234"}}`))
	if err != nil {
		t.Fatalf("ParsePaymentRequired: %v", err)
	}
	want := &PaymentRequired{
		Description: "Standard audit",
		Accepts:     &PaymentTerms{Chain: "base", Token: "USDC", Amount: "150000", Recipient: "0x1234"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParsePaymentRequired([]byte(`nope`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{name: "url only", req: Request{SkillURL: "https://example.com/skills/weather"}},
		{name: "content only", req: Request{SkillContent: "name: weather"}},
		{name: "both empty", req: Request{}, want: ErrMissingInput},
		{name: "whitespace only", req: Request{SkillURL: "  ", SkillContent: "\n"}, want: ErrMissingInput},
		{name: "nul bytes only", req: Request{SkillContent: "\x00\x00 \x00"}, want: ErrMissingInput},
		{name: "control characters kept", req: Request{SkillContent: "\x07\x1b[31m"}},
		{name: "padded url", req: Request{SkillURL: " https://example.com/skill.md "}},
		{name: "bad scheme", req: Request{SkillURL: "ftp://example.com/skill"}, want: ErrInvalidSkillURL},
		{name: "relative url", req: Request{SkillURL: "skills/weather"}, want: ErrInvalidSkillURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				// what passes the guard must still carry input once normalized
				n := tt.req.Normalized()
				if n.SkillURL == "" && n.SkillContent == "" {
					t.Fatalf("Normalized() dropped all input: %+v", n)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSanitizeContent(t *testing.T) {
	got := SanitizeContent("  name: x\x00\x07\n\tcmd: run \r\n")
	if got != "  name: x\x07\n\tcmd: run \r\n" {
		t.Errorf("SanitizeContent = %q", got)
	}
}

func TestRequestNormalized(t *testing.T) {
	got := Request{SkillURL: " https://x.io ", SkillContent: "  # skill\x00\n"}.Normalized()
	want := Request{SkillURL: "https://x.io", SkillContent: "  # skill\n"}
	if got != want {
		t.Errorf("Normalized() = %+v, want %+v", got, want)
	}

	if blank := (Request{SkillContent: "\x00 \n"}).Normalized(); blank.SkillContent != "" {
		t.Errorf("blank content should be dropped, got %q", blank.SkillContent)
	}
}

func TestRiskBand(t *testing.T) {
	cases := map[float64]string{0: "green", 24.9: "green", 25: "yellow", 49: "yellow", 50: "orange", 74: "orange", 75: "red", 100: "red"}
	for score, want := range cases {
		if got := RiskBand(score); got != want {
			t.Errorf("RiskBand(%v) = %q, want %q", score, got, want)
		}
	}
}
