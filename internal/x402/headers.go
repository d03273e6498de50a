// Package x402 implements the client side of the x402 "402 Payment Required"
// protocol: header names, the base64 JSON codec, EIP-3009 payment
// authorizations and a request wrapper that pays and retries once.
package x402

import (
	"net/http"
	"strings"
)

const (
	// HeaderPaymentSignature carries the v2 payment proof on a request.
	HeaderPaymentSignature = "PAYMENT-SIGNATURE"
	// HeaderXPayment carries the v1 payment proof on a request.
	HeaderXPayment = "X-PAYMENT"
	// HeaderPaymentRequired carries the v2 challenge on a 402 response.
	HeaderPaymentRequired = "PAYMENT-REQUIRED"
	// HeaderPaymentResponse carries the settlement receipt on a paid response.
	HeaderPaymentResponse = "PAYMENT-RESPONSE"
	// HeaderXPaymentResponse is the v1 name of the receipt header.
	HeaderXPaymentResponse = "X-PAYMENT-RESPONSE"
	HeaderWWWAuthenticate  = "WWW-Authenticate"
)

// ExposedHeaders lists the response headers a browser caller must be allowed to read.
var ExposedHeaders = []string{HeaderPaymentRequired, HeaderPaymentResponse, HeaderWWWAuthenticate}

// Lookup returns the first non-empty value among names. Matching is
// case-insensitive, including keys stored outside canonical form.
func Lookup(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
		for k, vs := range h {
			if strings.EqualFold(k, name) && len(vs) > 0 && vs[0] != "" {
				return vs[0]
			}
		}
	}
	return ""
}

// HasPayment reports whether h already carries a payment proof.
func HasPayment(h http.Header) bool {
	return Lookup(h, HeaderPaymentSignature, HeaderXPayment) != ""
}
