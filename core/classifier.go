package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorClass buckets a failed gateway call into the handling strategy every
// caller shares: retry later, force reauthorization, surface to the donor,
// or give up.
type ErrorClass string

const (
	ClassRetryable   ErrorClass = "retryable"
	ClassAuthFailure ErrorClass = "auth_failure"
	ClassUserFacing  ErrorClass = "user_facing"
	ClassFatal       ErrorClass = "fatal"
)

// ProviderError is the normalized remote failure a gateway client returns.
// Code carries the provider's machine-readable error code verbatim.
type ProviderError struct {
	GatewayID  string
	StatusCode int
	Code       string
	Detail     string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "core: provider error"
	}
	detail := strings.TrimSpace(e.Detail)
	if detail == "" {
		detail = "request failed"
	}
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("core: gateway %s: %s (%s, status %d)", e.GatewayID, detail, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("core: gateway %s: %s (status %d)", e.GatewayID, detail, e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

var authFailureCodes = map[string]struct{}{
	"ACCESS_TOKEN_EXPIRED": {},
	"ACCESS_TOKEN_REVOKED": {},
	"UNAUTHORIZED":         {},
	"AUTHENTICATION_ERROR": {},
	"INVALID_GRANT":        {},
}

var userFacingCodes = map[string]struct{}{
	"CARD_DECLINED":                {},
	"CVV_FAILURE":                  {},
	"ADDRESS_VERIFICATION_FAILURE": {},
	"INSUFFICIENT_FUNDS":           {},
	"CARD_EXPIRED":                 {},
	"INVALID_CARD":                 {},
	"GENERIC_DECLINE":              {},
}

// Classify maps any error from a gateway call onto an ErrorClass. Unknown
// provider errors default by HTTP status: 5xx and 429 retry, auth statuses
// force reauthorization, remaining 4xx are user facing.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassFatal
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) && providerErr != nil {
		code := strings.TrimSpace(strings.ToUpper(providerErr.Code))
		if _, ok := authFailureCodes[code]; ok {
			return ClassAuthFailure
		}
		if _, ok := userFacingCodes[code]; ok {
			return ClassUserFacing
		}
		switch {
		case providerErr.StatusCode == 401 || providerErr.StatusCode == 403:
			return ClassAuthFailure
		case providerErr.StatusCode == 429 || providerErr.StatusCode >= 500:
			return ClassRetryable
		case providerErr.StatusCode >= 400:
			return ClassUserFacing
		default:
			return ClassFatal
		}
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz:
			return ClassAuthFailure
		case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
			return ClassRetryable
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return ClassUserFacing
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetryable
	}

	return ClassFatal
}
