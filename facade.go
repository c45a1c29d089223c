package payments

import (
	"context"
	"fmt"

	paymentscommand "github.com/goliatone/go-payments/command"
	"github.com/goliatone/go-payments/core"
)

// CommandService is what the facade needs from a service implementation: the
// mutating operations the command catalog drives plus the status read path.
type CommandService interface {
	paymentscommand.MutatingService
	Status(ctx context.Context, mode core.Mode) (core.ConnectionStatus, error)
}

type Commands struct {
	Connect            *paymentscommand.ConnectCommand
	CompleteCallback   *paymentscommand.CompleteCallbackCommand
	Disconnect         *paymentscommand.DisconnectCommand
	Refresh            *paymentscommand.RefreshCommand
	ChargeSingle       *paymentscommand.ChargeSingleCommand
	ChargeSubscription *paymentscommand.ChargeSubscriptionCommand
	CancelSubscription *paymentscommand.CancelSubscriptionCommand
	Refund             *paymentscommand.RefundCommand
}

type Facade struct {
	service  CommandService
	commands Commands
}

func NewFacade(service CommandService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("payments: command service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Connect:            paymentscommand.NewConnectCommand(service),
		CompleteCallback:   paymentscommand.NewCompleteCallbackCommand(service),
		Disconnect:         paymentscommand.NewDisconnectCommand(service),
		Refresh:            paymentscommand.NewRefreshCommand(service),
		ChargeSingle:       paymentscommand.NewChargeSingleCommand(service),
		ChargeSubscription: paymentscommand.NewChargeSubscriptionCommand(service),
		CancelSubscription: paymentscommand.NewCancelSubscriptionCommand(service),
		Refund:             paymentscommand.NewRefundCommand(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() CommandService {
	if f == nil {
		return nil
	}
	return f.service
}

// Status delegates to the service read path so holders of the facade do not
// need the service handle for the one query the module exposes.
func (f *Facade) Status(ctx context.Context, mode core.Mode) (core.ConnectionStatus, error) {
	if f == nil || f.service == nil {
		return core.ConnectionStatusDisconnected, fmt.Errorf("payments: facade is not configured")
	}
	return f.service.Status(ctx, mode)
}

var _ CommandService = (*core.Service)(nil)
