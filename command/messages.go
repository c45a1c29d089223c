package command

import (
	"strings"

	"github.com/goliatone/go-payments/core"
)

const (
	TypeConnect            = "payments.command.connect"
	TypeCompleteCallback   = "payments.command.callback.complete"
	TypeDisconnect         = "payments.command.disconnect"
	TypeRefresh            = "payments.command.refresh"
	TypeChargeSingle       = "payments.command.charge.single"
	TypeChargeSubscription = "payments.command.subscription.charge"
	TypeCancelSubscription = "payments.command.subscription.cancel"
	TypeRefund             = "payments.command.refund"
)

type ConnectMessage struct {
	Request core.ConnectRequest
}

func (ConnectMessage) Type() string { return TypeConnect }

func (m ConnectMessage) Validate() error {
	if err := m.Request.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: connect mode is invalid")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if err := m.Request.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: callback mode is invalid")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "state token is required")
	}
	return nil
}

type DisconnectMessage struct {
	Mode core.Mode
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if err := m.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: disconnect mode is invalid")
	}
	return nil
}

type RefreshMessage struct {
	Request core.RefreshRequest
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if err := m.Request.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: refresh mode is invalid")
	}
	return nil
}

type ChargeSingleMessage struct {
	Request core.ChargeRequest
}

func (ChargeSingleMessage) Type() string { return TypeChargeSingle }

func (m ChargeSingleMessage) Validate() error {
	if err := m.Request.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: charge mode is invalid")
	}
	if strings.TrimSpace(m.Request.DonationID) == "" {
		return commandValidationError("donation_id", "donation id is required")
	}
	if strings.TrimSpace(m.Request.SourceToken) == "" {
		return commandValidationError("source_token", "source token is required")
	}
	if m.Request.AmountMinor <= 0 {
		return commandValidationError("amount_minor", "amount must be positive")
	}
	return nil
}

type ChargeSubscriptionMessage struct {
	Request core.SubscribeRequest
}

func (ChargeSubscriptionMessage) Type() string { return TypeChargeSubscription }

func (m ChargeSubscriptionMessage) Validate() error {
	if err := m.Request.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: subscription mode is invalid")
	}
	if strings.TrimSpace(m.Request.DonationID) == "" {
		return commandValidationError("donation_id", "donation id is required")
	}
	if strings.TrimSpace(m.Request.SourceToken) == "" {
		return commandValidationError("source_token", "source token is required")
	}
	if m.Request.AmountMinor <= 0 {
		return commandValidationError("amount_minor", "amount must be positive")
	}
	if err := m.Request.Cadence.Validate(); err != nil {
		return commandWrapValidation(err, "command: subscription cadence is invalid")
	}
	return nil
}

type CancelSubscriptionMessage struct {
	Request core.CancelRequest
}

func (CancelSubscriptionMessage) Type() string { return TypeCancelSubscription }

func (m CancelSubscriptionMessage) Validate() error {
	if err := m.Request.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: cancel mode is invalid")
	}
	if strings.TrimSpace(m.Request.GatewaySubscriptionID) == "" {
		return commandValidationError("gateway_subscription_id", "gateway subscription id is required")
	}
	return nil
}

type RefundMessage struct {
	Request core.RefundOrderRequest
}

func (RefundMessage) Type() string { return TypeRefund }

func (m RefundMessage) Validate() error {
	if err := m.Request.Mode.Validate(); err != nil {
		return commandWrapValidation(err, "command: refund mode is invalid")
	}
	if strings.TrimSpace(m.Request.TransactionID) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}
