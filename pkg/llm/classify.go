package llm

import (
	"context"
	"errors"

	"github.com/netover/tws-gateway/pkg/apperrors"
)

// FailureClass is the taxonomy classify_error maps a provider error onto.
type FailureClass string

const (
	FailureTimeout     FailureClass = "TIMEOUT"
	FailureRateLimit   FailureClass = "RATE_LIMIT"
	FailureAuth        FailureClass = "AUTH"
	FailureServerError FailureClass = "SERVER_ERROR"
	FailureClientError FailureClass = "CLIENT_ERROR"
	FailureCircuitOpen FailureClass = "CIRCUIT_OPEN"
)

// retryable is the set of classes the fallback chain retries within a
// single provider before moving on; AUTH and CLIENT_ERROR are deliberately
// excluded so a 4xx is never masked by a retry or a fallback.
var retryable = map[FailureClass]bool{
	FailureTimeout:     true,
	FailureRateLimit:   true,
	FailureServerError: true,
}

// ClassifyFunc maps a raw provider error to a FailureClass.
type ClassifyFunc func(err error) FailureClass

// DefaultClassify inspects apperrors codes and common HTTP-status-carrying
// errors to pick a FailureClass. Providers that need finer-grained
// classification (e.g. distinguishing 401 from 403) should supply their own
// ClassifyFunc.
func DefaultClassify(err error) FailureClass {
	if err == nil {
		return FailureServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var ae *apperrors.Error
	if errors.As(err, &ae) {
		switch ae.Code {
		case apperrors.CodeTimeout:
			return FailureTimeout
		case apperrors.CodeCircuitOpen:
			return FailureCircuitOpen
		}
		if status, ok := ae.Context["status"].(int); ok {
			return classifyStatus(status)
		}
	}

	return FailureServerError
}

func classifyStatus(status int) FailureClass {
	switch {
	case status == 401 || status == 403:
		return FailureAuth
	case status == 429:
		return FailureRateLimit
	case status >= 500:
		return FailureServerError
	case status >= 400:
		return FailureClientError
	default:
		return FailureServerError
	}
}
