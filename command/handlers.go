package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-payments/core"
)

// MutatingService is the slice of the payment service that commands drive.
// Status stays out; it is a read path and callers query it directly.
type MutatingService interface {
	Connect(ctx context.Context, req core.ConnectRequest) (core.BeginAuthorizeResponse, error)
	CompleteCallback(ctx context.Context, req core.CallbackRequest) (core.ConnectionRecord, error)
	Disconnect(ctx context.Context, mode core.Mode) error
	Refresh(ctx context.Context, req core.RefreshRequest) (core.ConnectionRecord, error)
	ChargeSingle(ctx context.Context, req core.ChargeRequest) (core.Transaction, error)
	ChargeSubscriptionInitial(ctx context.Context, req core.SubscribeRequest) (core.Subscription, error)
	CancelSubscription(ctx context.Context, req core.CancelRequest) (core.Subscription, error)
	Refund(ctx context.Context, req core.RefundOrderRequest) (core.Transaction, error)
}

type ConnectCommand struct {
	service MutatingService
}

func NewConnectCommand(service MutatingService) *ConnectCommand {
	return &ConnectCommand{service: service}
}

func (c *ConnectCommand) Execute(ctx context.Context, msg ConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.Connect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.Mode)
}

type RefreshCommand struct {
	service MutatingService
}

func NewRefreshCommand(service MutatingService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.Refresh(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ChargeSingleCommand struct {
	service MutatingService
}

func NewChargeSingleCommand(service MutatingService) *ChargeSingleCommand {
	return &ChargeSingleCommand{service: service}
}

func (c *ChargeSingleCommand) Execute(ctx context.Context, msg ChargeSingleMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: charge service is required")
	}
	out, err := c.service.ChargeSingle(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ChargeSubscriptionCommand struct {
	service MutatingService
}

func NewChargeSubscriptionCommand(service MutatingService) *ChargeSubscriptionCommand {
	return &ChargeSubscriptionCommand{service: service}
}

func (c *ChargeSubscriptionCommand) Execute(ctx context.Context, msg ChargeSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	out, err := c.service.ChargeSubscriptionInitial(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelSubscriptionCommand struct {
	service MutatingService
}

func NewCancelSubscriptionCommand(service MutatingService) *CancelSubscriptionCommand {
	return &CancelSubscriptionCommand{service: service}
}

func (c *CancelSubscriptionCommand) Execute(ctx context.Context, msg CancelSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: cancel subscription service is required")
	}
	out, err := c.service.CancelSubscription(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefundCommand struct {
	service MutatingService
}

func NewRefundCommand(service MutatingService) *RefundCommand {
	return &RefundCommand{service: service}
}

func (c *RefundCommand) Execute(ctx context.Context, msg RefundMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refund service is required")
	}
	out, err := c.service.Refund(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
