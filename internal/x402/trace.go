package x402

import "context"

// ClientTrace hooks into the stages of a paid request, in the manner of
// net/http/httptrace. Any field may be nil.
type ClientTrace struct {
	// GotFirstResponse is called when the headers of the unpaid response
	// arrive, before its body is read.
	GotFirstResponse func(statusCode int)

	// PaymentRequired is called once the 402 challenge is decoded.
	PaymentRequired func(challenge *PaymentRequired)

	// PaymentSigned is called after the wallet signed, before the retry is sent.
	PaymentSigned func(accepted Requirements)
}

type traceKey struct{}

func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(traceKey{}).(*ClientTrace)
	return trace
}
