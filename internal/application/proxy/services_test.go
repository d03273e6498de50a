package proxy

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bryanwahyu/x402guard/internal/domain/audit"
	"github.com/bryanwahyu/x402guard/internal/infra/upstream"
)

type fakeBackend struct {
	calls  int
	tier   string
	body   string
	header http.Header
	resp   *upstream.Response
	err    error
}

func (f *fakeBackend) Audit(_ context.Context, tier string, body []byte, header http.Header) (*upstream.Response, error) {
	f.calls++
	f.tier, f.body, f.header = tier, string(body), header
	return f.resp, f.err
}

func TestForward_InvalidTier(t *testing.T) {
	backend := &fakeBackend{}
	svc := &Service{Backend: backend}

	_, err := svc.Forward(context.Background(), "ultra", []byte(`{}`), nil)
	if !errors.Is(err, audit.ErrInvalidTier) {
		t.Fatalf("err = %v, want ErrInvalidTier", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times", backend.calls)
	}
}

func TestForward_InvalidJSON(t *testing.T) {
	backend := &fakeBackend{}
	svc := &Service{Backend: backend}

	for _, body := range []string{"", "{", "skill"} {
		if _, err := svc.Forward(context.Background(), "quick", []byte(body), nil); !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("body %q: err = %v", body, err)
		}
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times", backend.calls)
	}
}

func TestForward_RelaysPaymentHeaders(t *testing.T) {
	backend := &fakeBackend{resp: &upstream.Response{
		StatusCode: http.StatusPaymentRequired,
		Header: http.Header{
			"PAYMENT-REQUIRED": {"eyJ4NDAyVmVyc2lvbiI6Mn0="},
			"Www-Authenticate": {"x402"},
			"X-Internal":       {"secret"},
		},
		Body: []byte(`{}`),
	}}
	svc := &Service{Backend: backend}

	in := http.Header{"payment-signature": {"sig"}}
	in.Set("X-Payment", "v1")
	res, err := svc.Forward(context.Background(), "standard", []byte("{ \"skill_url\": \"https://x.io\" }"), in)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if backend.tier != "standard" || backend.body != `{"skill_url":"https://x.io"}` {
		t.Errorf("backend got tier=%s body=%s", backend.tier, backend.body)
	}
	wantOut := http.Header{"Payment-Signature": {"sig"}, "X-Payment": {"v1"}}
	if diff := cmp.Diff(wantOut, backend.header); diff != "" {
		t.Errorf("forwarded headers (-want +got):\n%s", diff)
	}

	want := &Response{
		StatusCode: http.StatusPaymentRequired,
		Header: http.Header{
			"Payment-Required": {"eyJ4NDAyVmVyc2lvbiI6Mn0="},
			"Www-Authenticate": {"x402"},
		},
		Body: []byte(`{}`),
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("response (-want +got):\n%s", diff)
	}
}

func TestForward_NonJSONBodyBecomesEmptyObject(t *testing.T) {
	backend := &fakeBackend{resp: &upstream.Response{StatusCode: http.StatusInternalServerError, Header: http.Header{}, Body: []byte("<html>")}}
	res, err := (&Service{Backend: backend}).Forward(context.Background(), "deep", []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if res.StatusCode != http.StatusInternalServerError || string(res.Body) != "{}" {
		t.Errorf("got %d %s", res.StatusCode, res.Body)
	}
	if len(backend.header) != 0 {
		t.Errorf("unexpected forwarded headers: %v", backend.header)
	}
}

func TestForward_TransportError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("dial tcp: connection refused")}
	_, err := (&Service{Backend: backend}).Forward(context.Background(), "quick", []byte(`{}`), nil)

	var gw *GatewayError
	if !errors.As(err, &gw) {
		t.Fatalf("err = %v, want GatewayError", err)
	}
	if gw.Error() != "dial tcp: connection refused" {
		t.Errorf("message = %q", gw.Error())
	}
	if (&GatewayError{}).Error() != "Failed to connect to API" {
		t.Error("empty gateway error should use the default message")
	}
}
