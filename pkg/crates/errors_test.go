package crates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pkgwatch/crates-io-client/pkg/codec"
	"github.com/pkgwatch/crates-io-client/pkg/transport"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "transport failure",
			err:  &transport.Error{URL: "https://crates.io/api/v1/summary", Err: errors.New("connection refused")},
			want: KindTransport,
		},
		{
			name: "not found",
			err:  &codec.NotFoundError{URL: "https://crates.io/api/v1/crates/nope"},
			want: KindNotFound,
		},
		{
			name: "permission denied",
			err:  &codec.PermissionDeniedError{Reason: "must be logged in"},
			want: KindPermissionDenied,
		},
		{
			name: "api error",
			err:  &codec.APIError{Status: 500, Errors: []codec.APIErrorDetail{{Detail: "boom"}}},
			want: KindAPI,
		},
		{
			name: "decode error",
			err:  &codec.DecodeError{Detail: "unexpected end of input"},
			want: KindDecode,
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("loading crate: %w", &codec.APIError{Status: 429}),
			want: KindAPI,
		},
		{
			name: "cancelled context",
			err:  context.Canceled,
			want: KindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", &codec.NotFoundError{URL: "https://crates.io/api/v1/crates/nope"})
	if !IsNotFound(notFound) {
		t.Error("IsNotFound missed a wrapped NotFoundError")
	}
	if IsNotFound(errors.New("unrelated")) {
		t.Error("IsNotFound matched an unrelated error")
	}

	denied := &codec.PermissionDeniedError{Reason: "must be logged in"}
	if !IsPermissionDenied(denied) {
		t.Error("IsPermissionDenied missed a PermissionDeniedError")
	}
	if IsPermissionDenied(notFound) {
		t.Error("IsPermissionDenied matched a not-found error")
	}
}
