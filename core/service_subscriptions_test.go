package core

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestChargeSubscriptionInitialPersistsIdentifiers(t *testing.T) {
	gateway := &fakeGateway{
		id: "square",
		subResult: SubscriptionResult{
			GatewaySubscriptionID: "sub-1",
			GatewayCustomerID:     "cust-1",
			InitialPaymentID:      "pay-7",
			Active:                true,
		},
	}
	store := NewMemoryConnectionStore()
	subs := NewMemorySubscriptionStore()
	txns := NewMemoryTransactionStore()
	service := newTestService(t, gateway,
		WithConnectionStore(store),
		WithSubscriptionStore(subs),
		WithTransactionStore(txns),
	)

	if err := store.Save(context.Background(), connectedRecord(ModeTest)); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	sub, err := service.ChargeSubscriptionInitial(context.Background(), SubscribeRequest{
		Mode:        ModeTest,
		DonationID:  "don-1",
		SourceToken: "cnon:card-nonce",
		AmountMinor: 1000,
		Currency:    "USD",
		Cadence:     CadenceMonthly,
		PlanName:    "Monthly Giving",
		CustomerRef: "donor@example.org",
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.GatewaySubscriptionID != "sub-1" || sub.GatewayCustomerID != "cust-1" {
		t.Fatalf("expected gateway identifiers persisted, got %+v", sub)
	}
	if sub.Status != SubscriptionStatusActive {
		t.Fatalf("expected active subscription, got %s", sub.Status)
	}
	if gateway.lastSubscribe.Cadence != CadenceMonthly {
		t.Fatalf("expected cadence forwarded, got %s", gateway.lastSubscribe.Cadence)
	}

	initial, err := txns.GetByGatewayID(context.Background(), ModeTest, "pay-7")
	if err != nil {
		t.Fatalf("initial transaction: %v", err)
	}
	if initial.Kind != TransactionKindSubscriptionInitial {
		t.Fatalf("expected subscription_initial kind, got %s", initial.Kind)
	}
	if initial.Status != TransactionStatusPending {
		t.Fatalf("expected pending initial charge, got %s", initial.Status)
	}
}

func TestChargeSubscriptionInitialRejectsUnknownCadence(t *testing.T) {
	gateway := &fakeGateway{id: "square"}
	store := NewMemoryConnectionStore()
	service := newTestService(t, gateway, WithConnectionStore(store))

	if err := store.Save(context.Background(), connectedRecord(ModeTest)); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	_, err := service.ChargeSubscriptionInitial(context.Background(), SubscribeRequest{
		Mode:        ModeTest,
		DonationID:  "don-1",
		SourceToken: "cnon:card-nonce",
		AmountMinor: 1000,
		Currency:    "USD",
		Cadence:     Cadence("every-blue-moon"),
	})
	if err == nil {
		t.Fatal("expected cadence rejection")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != PaymentsErrorBadInput {
		t.Fatalf("expected %s, got %v", PaymentsErrorBadInput, err)
	}
}

func TestChargeSubscriptionInitialFailsFastWhenNotConnected(t *testing.T) {
	gateway := &fakeGateway{id: "square"}
	service := newTestService(t, gateway)

	_, err := service.ChargeSubscriptionInitial(context.Background(), SubscribeRequest{
		Mode:        ModeLive,
		DonationID:  "don-1",
		SourceToken: "cnon:card-nonce",
		AmountMinor: 1000,
		Currency:    "USD",
		Cadence:     CadenceAnnual,
	})
	if err == nil {
		t.Fatal("expected fail-fast error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != PaymentsErrorNotConnected {
		t.Fatalf("expected %s, got %v", PaymentsErrorNotConnected, err)
	}
}

func TestCancelSubscriptionMarksCanceled(t *testing.T) {
	gateway := &fakeGateway{id: "square"}
	store := NewMemoryConnectionStore()
	subs := NewMemorySubscriptionStore()
	service := newTestService(t, gateway, WithConnectionStore(store), WithSubscriptionStore(subs))

	if err := store.Save(context.Background(), connectedRecord(ModeTest)); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	seed, err := subs.Create(context.Background(), Subscription{
		DonationID:            "don-2",
		Mode:                  ModeTest,
		GatewaySubscriptionID: "sub-9",
		Cadence:               CadenceMonthly,
		Status:                SubscriptionStatusActive,
	})
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	sub, err := service.CancelSubscription(context.Background(), CancelRequest{
		Mode:                  ModeTest,
		GatewaySubscriptionID: "sub-9",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sub.Status != SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", sub.Status)
	}

	stored, err := subs.Get(context.Background(), seed.ID)
	if err != nil {
		t.Fatalf("stored subscription: %v", err)
	}
	if stored.Status != SubscriptionStatusCanceled {
		t.Fatalf("expected stored canceled, got %s", stored.Status)
	}
}

func TestCancelSubscriptionAlreadyCanceledRemotelyIsSuccess(t *testing.T) {
	gateway := &fakeGateway{
		id:           "square",
		cancelResult: CancelSubscriptionResult{AlreadyCanceled: true},
	}
	store := NewMemoryConnectionStore()
	subs := NewMemorySubscriptionStore()
	service := newTestService(t, gateway, WithConnectionStore(store), WithSubscriptionStore(subs))

	if err := store.Save(context.Background(), connectedRecord(ModeTest)); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if _, err := subs.Create(context.Background(), Subscription{
		Mode:                  ModeTest,
		GatewaySubscriptionID: "sub-8",
		Cadence:               CadenceWeekly,
		Status:                SubscriptionStatusActive,
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	sub, err := service.CancelSubscription(context.Background(), CancelRequest{
		Mode:                  ModeTest,
		GatewaySubscriptionID: "sub-8",
	})
	if err != nil {
		t.Fatalf("cancel already-canceled: %v", err)
	}
	if sub.Status != SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", sub.Status)
	}
}

func TestCancelSubscriptionLocallyCanceledSkipsGateway(t *testing.T) {
	gateway := &fakeGateway{id: "square"}
	store := NewMemoryConnectionStore()
	subs := NewMemorySubscriptionStore()
	service := newTestService(t, gateway, WithConnectionStore(store), WithSubscriptionStore(subs))

	if err := store.Save(context.Background(), connectedRecord(ModeTest)); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if _, err := subs.Create(context.Background(), Subscription{
		Mode:                  ModeTest,
		GatewaySubscriptionID: "sub-7",
		Cadence:               CadenceDaily,
		Status:                SubscriptionStatusCanceled,
	}); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	sub, err := service.CancelSubscription(context.Background(), CancelRequest{
		Mode:                  ModeTest,
		GatewaySubscriptionID: "sub-7",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sub.Status != SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", sub.Status)
	}
	if gateway.cancelCalls != 0 {
		t.Fatal("already-canceled subscription must not hit the gateway")
	}
}
