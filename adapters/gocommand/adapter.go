package gocommand

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver gocmd.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd gocmd.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

// DispatcherAdapter routes payment command messages through the global
// dispatcher. It satisfies the core dispatch contract so callers holding the
// core interface stay decoupled from the message catalog.
type DispatcherAdapter struct{}

func NewDispatcherAdapter() *DispatcherAdapter {
	return &DispatcherAdapter{}
}

func (DispatcherAdapter) Dispatch(ctx context.Context, msg any) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	switch m := msg.(type) {
	case command.ConnectMessage:
		return commanddispatcher.Dispatch(ctx, m)
	case command.CompleteCallbackMessage:
		return commanddispatcher.Dispatch(ctx, m)
	case command.DisconnectMessage:
		return commanddispatcher.Dispatch(ctx, m)
	case command.RefreshMessage:
		return commanddispatcher.Dispatch(ctx, m)
	case command.ChargeSingleMessage:
		return commanddispatcher.Dispatch(ctx, m)
	case command.ChargeSubscriptionMessage:
		return commanddispatcher.Dispatch(ctx, m)
	case command.CancelSubscriptionMessage:
		return commanddispatcher.Dispatch(ctx, m)
	case command.RefundMessage:
		return commanddispatcher.Dispatch(ctx, m)
	default:
		return fmt.Errorf("gocommand: unsupported message type %T", msg)
	}
}

var _ core.CommandDispatcher = (*DispatcherAdapter)(nil)

// RegisterPaymentCommands subscribes the full command catalog against one
// service and registers each command with the registry. On failure it
// unsubscribes everything it already wired.
func RegisterPaymentCommands(
	adapter *RegistryAdapter,
	service command.MutatingService,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: payment service is required")
	}

	var subscriptions []commanddispatcher.Subscription
	cleanup := func() {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}

	wire := func(subscribe func() commanddispatcher.Subscription, cmd any) error {
		subscription := subscribe()
		if err := adapter.RegisterCommand(cmd); err != nil {
			if subscription != nil {
				subscription.Unsubscribe()
			}
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	connect := command.NewConnectCommand(service)
	callback := command.NewCompleteCallbackCommand(service)
	disconnect := command.NewDisconnectCommand(service)
	refresh := command.NewRefreshCommand(service)
	chargeSingle := command.NewChargeSingleCommand(service)
	chargeSubscription := command.NewChargeSubscriptionCommand(service)
	cancelSubscription := command.NewCancelSubscriptionCommand(service)
	refund := command.NewRefundCommand(service)

	steps := []struct {
		subscribe func() commanddispatcher.Subscription
		cmd       any
	}{
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.ConnectMessage](connect, runnerOpts...)
		}, connect},
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.CompleteCallbackMessage](callback, runnerOpts...)
		}, callback},
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.DisconnectMessage](disconnect, runnerOpts...)
		}, disconnect},
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.RefreshMessage](refresh, runnerOpts...)
		}, refresh},
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.ChargeSingleMessage](chargeSingle, runnerOpts...)
		}, chargeSingle},
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.ChargeSubscriptionMessage](chargeSubscription, runnerOpts...)
		}, chargeSubscription},
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.CancelSubscriptionMessage](cancelSubscription, runnerOpts...)
		}, cancelSubscription},
		{func() commanddispatcher.Subscription {
			return SubscribeCommand[command.RefundMessage](refund, runnerOpts...)
		}, refund},
	}
	for _, step := range steps {
		if err := wire(step.subscribe, step.cmd); err != nil {
			cleanup()
			return nil, err
		}
	}

	return subscriptions, nil
}
