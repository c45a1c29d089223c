package payments

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-payments/core"
)

func TestNewFacadeRequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestNewFacadeBuildsCommandCatalog(t *testing.T) {
	facade, err := NewFacade(&facadeStubService{status: core.ConnectionStatusConnected})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.Connect == nil || commands.CompleteCallback == nil || commands.Disconnect == nil {
		t.Fatalf("expected lifecycle commands to be wired")
	}
	if commands.Refresh == nil || commands.ChargeSingle == nil || commands.ChargeSubscription == nil {
		t.Fatalf("expected processor commands to be wired")
	}
	if commands.CancelSubscription == nil || commands.Refund == nil {
		t.Fatalf("expected subscription and refund commands to be wired")
	}
	if facade.Service() == nil {
		t.Fatalf("expected service accessor")
	}
}

func TestFacadeStatusDelegates(t *testing.T) {
	svc := &facadeStubService{status: core.ConnectionStatusExpired}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	status, err := facade.Status(context.Background(), core.ModeLive)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != core.ConnectionStatusExpired {
		t.Fatalf("expected expired status, got %q", status)
	}
	if svc.statusMode != core.ModeLive {
		t.Fatalf("expected live mode passthrough, got %q", svc.statusMode)
	}
}

type facadeStubService struct {
	status     core.ConnectionStatus
	statusMode core.Mode
}

func (s *facadeStubService) Status(_ context.Context, mode core.Mode) (core.ConnectionStatus, error) {
	s.statusMode = mode
	return s.status, nil
}

func (s *facadeStubService) Connect(context.Context, core.ConnectRequest) (core.BeginAuthorizeResponse, error) {
	return core.BeginAuthorizeResponse{}, fmt.Errorf("not configured")
}

func (s *facadeStubService) CompleteCallback(context.Context, core.CallbackRequest) (core.ConnectionRecord, error) {
	return core.ConnectionRecord{}, fmt.Errorf("not configured")
}

func (s *facadeStubService) Disconnect(context.Context, core.Mode) error {
	return fmt.Errorf("not configured")
}

func (s *facadeStubService) Refresh(context.Context, core.RefreshRequest) (core.ConnectionRecord, error) {
	return core.ConnectionRecord{}, fmt.Errorf("not configured")
}

func (s *facadeStubService) ChargeSingle(context.Context, core.ChargeRequest) (core.Transaction, error) {
	return core.Transaction{}, fmt.Errorf("not configured")
}

func (s *facadeStubService) ChargeSubscriptionInitial(context.Context, core.SubscribeRequest) (core.Subscription, error) {
	return core.Subscription{}, fmt.Errorf("not configured")
}

func (s *facadeStubService) CancelSubscription(context.Context, core.CancelRequest) (core.Subscription, error) {
	return core.Subscription{}, fmt.Errorf("not configured")
}

func (s *facadeStubService) Refund(context.Context, core.RefundOrderRequest) (core.Transaction, error) {
	return core.Transaction{}, fmt.Errorf("not configured")
}

var _ CommandService = (*facadeStubService)(nil)
