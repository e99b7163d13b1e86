package crates

import (
	"errors"

	"github.com/pkgwatch/crates-io-client/pkg/codec"
	"github.com/pkgwatch/crates-io-client/pkg/transport"
)

// Kind classifies errors returned by the client. It mirrors the decoder's
// taxonomy plus transport failures, giving callers a switchable category
// without type assertions against every error type.
type Kind string

const (
	// KindTransport covers network and body-read failures. No response
	// was decoded; retrying may succeed.
	KindTransport Kind = "transport"

	// KindNotFound means the addressed resource does not exist.
	KindNotFound Kind = "not_found"

	// KindPermissionDenied means the registry refused the request, e.g.
	// an endpoint requiring authentication.
	KindPermissionDenied Kind = "permission_denied"

	// KindAPI is a structured error reported by the registry itself.
	KindAPI Kind = "api"

	// KindDecode means the response body did not match the expected
	// shape.
	KindDecode Kind = "decode"

	// KindOther is anything else, e.g. a cancelled context.
	KindOther Kind = "other"
)

// KindOf reports the classification of err. A nil error yields the empty
// Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var (
		transportErr *transport.Error
		notFound     *codec.NotFoundError
		denied       *codec.PermissionDeniedError
		apiErr       *codec.APIError
		decodeErr    *codec.DecodeError
	)
	switch {
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &denied):
		return KindPermissionDenied
	case errors.As(err, &apiErr):
		return KindAPI
	case errors.As(err, &decodeErr):
		return KindDecode
	default:
		return KindOther
	}
}

// IsNotFound reports whether err means the requested resource is absent.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsPermissionDenied reports whether err means access was refused.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == KindPermissionDenied
}
