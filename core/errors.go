package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PaymentsErrorBadInput              = "PAYMENTS_BAD_INPUT"
	PaymentsErrorNotConnected          = "PAYMENTS_NOT_CONNECTED"
	PaymentsErrorStateMismatch         = "PAYMENTS_STATE_MISMATCH"
	PaymentsErrorRefreshInProgress     = "PAYMENTS_REFRESH_IN_PROGRESS"
	PaymentsErrorSignatureInvalid      = "PAYMENTS_SIGNATURE_INVALID"
	PaymentsErrorMissingTransactionRef = "PAYMENTS_MISSING_TRANSACTION_REF"
	PaymentsErrorGatewayNotFound       = "PAYMENTS_GATEWAY_NOT_FOUND"
	PaymentsErrorAuthFailure           = "PAYMENTS_AUTH_FAILURE"
	PaymentsErrorDeclined              = "PAYMENTS_DECLINED"
	PaymentsErrorProviderUnavailable   = "PAYMENTS_PROVIDER_UNAVAILABLE"
	PaymentsErrorInternal              = "PAYMENTS_INTERNAL_ERROR"
)

func paymentsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePaymentsErrorEnvelope(richErr)
	}

	var providerErr *ProviderError
	if goerrors.As(err, &providerErr) {
		return ensurePaymentsErrorEnvelope(classifiedProviderError(providerErr))
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not connected"):
		return newPaymentsError(err.Error(), goerrors.CategoryConflict, PaymentsErrorNotConnected)
	case strings.Contains(msg, "state token"), strings.Contains(msg, "state mismatch"):
		return newPaymentsError(err.Error(), goerrors.CategoryAuth, PaymentsErrorStateMismatch)
	case strings.Contains(msg, "refresh lock"), strings.Contains(msg, "refresh already"):
		return newPaymentsError(err.Error(), goerrors.CategoryConflict, PaymentsErrorRefreshInProgress)
	case strings.Contains(msg, "signature"):
		return newPaymentsError(err.Error(), goerrors.CategoryAuth, PaymentsErrorSignatureInvalid)
	case strings.Contains(msg, "transaction reference"):
		return newPaymentsError(err.Error(), goerrors.CategoryBadInput, PaymentsErrorMissingTransactionRef)
	case strings.Contains(msg, "gateway") && strings.Contains(msg, "not registered"):
		return newPaymentsError(err.Error(), goerrors.CategoryNotFound, PaymentsErrorGatewayNotFound)
	case strings.Contains(msg, "not found"):
		return newPaymentsError(err.Error(), goerrors.CategoryNotFound, PaymentsErrorBadInput)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newPaymentsError(err.Error(), goerrors.CategoryBadInput, PaymentsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePaymentsErrorEnvelope(mapped)
}

func newPaymentsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensurePaymentsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func classifiedProviderError(perr *ProviderError) *goerrors.Error {
	switch Classify(perr) {
	case ClassAuthFailure:
		return goerrors.New(perr.Error(), goerrors.CategoryAuth).
			WithTextCode(PaymentsErrorAuthFailure).
			WithMetadata(map[string]any{"provider_code": perr.Code})
	case ClassUserFacing:
		return goerrors.New(perr.Error(), goerrors.CategoryBadInput).
			WithTextCode(PaymentsErrorDeclined).
			WithMetadata(map[string]any{"provider_code": perr.Code})
	case ClassRetryable:
		return goerrors.New(perr.Error(), goerrors.CategoryExternal).
			WithTextCode(PaymentsErrorProviderUnavailable).
			WithMetadata(map[string]any{"provider_code": perr.Code})
	default:
		return goerrors.New(perr.Error(), goerrors.CategoryInternal).
			WithTextCode(PaymentsErrorInternal).
			WithMetadata(map[string]any{"provider_code": perr.Code})
	}
}

func ensurePaymentsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = paymentsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPaymentsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPaymentsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return PaymentsErrorBadInput
	case goerrors.CategoryNotFound:
		return PaymentsErrorGatewayNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return PaymentsErrorAuthFailure
	case goerrors.CategoryConflict:
		return PaymentsErrorNotConnected
	case goerrors.CategoryExternal:
		return PaymentsErrorProviderUnavailable
	default:
		return PaymentsErrorInternal
	}
}

func paymentsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
