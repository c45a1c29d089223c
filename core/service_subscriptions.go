package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChargeSubscriptionInitial creates the remote customer and subscription for
// a recurring donation and persists the returned identifiers. The gateway
// translates the cadence into its own vocabulary.
func (s *Service) ChargeSubscriptionInitial(ctx context.Context, req SubscribeRequest) (sub Subscription, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"gateway_id":  s.gatewayID(),
		"mode":        string(req.Mode),
		"donation_id": req.DonationID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "charge_subscription_initial", err, fields)
	}()

	if err = validateSubscribeRequest(req); err != nil {
		err = s.mapError(err)
		return Subscription{}, err
	}

	record, err := s.requireChargeableConnection(ctx, req.Mode)
	if err != nil {
		return Subscription{}, err
	}

	gateway, err := s.resolveGateway()
	if err != nil {
		return Subscription{}, err
	}

	result, subscribeErr := gateway.CreateSubscription(ctx, record, SubscriptionRequest{
		Cadence:        req.Cadence,
		PlanName:       req.PlanName,
		CustomerRef:    req.CustomerRef,
		SourceToken:    req.SourceToken,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		LocationID:     record.LocationID,
		IdempotencyKey: uuid.NewString(),
	})
	if subscribeErr != nil {
		s.invalidateOnAuthFailure(ctx, req.Mode, subscribeErr)
		err = s.mapError(subscribeErr)
		return Subscription{}, err
	}

	status := SubscriptionStatusPending
	if result.Active {
		status = SubscriptionStatusActive
	}
	sub, createErr := s.subscriptionStore.Create(ctx, Subscription{
		DonationID:            req.DonationID,
		Mode:                  req.Mode,
		GatewaySubscriptionID: result.GatewaySubscriptionID,
		GatewayCustomerID:     result.GatewayCustomerID,
		Cadence:               req.Cadence,
		PlanName:              req.PlanName,
		CustomerRef:           req.CustomerRef,
		Status:                status,
	})
	if createErr != nil {
		err = s.mapError(createErr)
		return Subscription{}, err
	}

	if strings.TrimSpace(result.InitialPaymentID) != "" {
		if _, txnErr := s.transactionStore.Create(ctx, Transaction{
			DonationID:           req.DonationID,
			Mode:                 req.Mode,
			GatewayTransactionID: result.InitialPaymentID,
			AmountMinor:          req.AmountMinor,
			Currency:             req.Currency,
			LocationID:           record.LocationID,
			Kind:                 TransactionKindSubscriptionInitial,
			Status:               TransactionStatusPending,
		}); txnErr != nil {
			s.logError(ctx, "initial subscription transaction record failed", map[string]any{
				"mode":        string(req.Mode),
				"donation_id": req.DonationID,
				"error":       txnErr.Error(),
			})
		}
	}

	return sub, nil
}

// CancelSubscription cancels a recurring donation remotely and locally. A
// subscription the gateway already canceled counts as success, so retries
// and webhook races converge on the same terminal state.
func (s *Service) CancelSubscription(ctx context.Context, req CancelRequest) (sub Subscription, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"gateway_id":      s.gatewayID(),
		"mode":            string(req.Mode),
		"subscription_id": req.GatewaySubscriptionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "cancel_subscription", err, fields)
	}()

	if err = req.Mode.Validate(); err != nil {
		err = s.mapError(err)
		return Subscription{}, err
	}
	if strings.TrimSpace(req.GatewaySubscriptionID) == "" {
		err = s.mapError(fmt.Errorf("core: gateway subscription id is required"))
		return Subscription{}, err
	}

	sub, getErr := s.subscriptionStore.GetByGatewayID(ctx, req.Mode, req.GatewaySubscriptionID)
	if getErr != nil {
		err = s.mapError(getErr)
		return Subscription{}, err
	}
	if sub.Status == SubscriptionStatusCanceled {
		return sub, nil
	}

	record, getRecordErr := s.connectionStore.Get(ctx, req.Mode)
	if getRecordErr != nil {
		err = s.mapError(fmt.Errorf("core: mode %q is not connected: %w", req.Mode, getRecordErr))
		return Subscription{}, err
	}

	gateway, err := s.resolveGateway()
	if err != nil {
		return Subscription{}, err
	}

	if _, cancelErr := gateway.CancelSubscription(ctx, record, req.GatewaySubscriptionID); cancelErr != nil {
		s.invalidateOnAuthFailure(ctx, req.Mode, cancelErr)
		err = s.mapError(cancelErr)
		return Subscription{}, err
	}

	if updateErr := s.subscriptionStore.UpdateStatus(ctx, sub.ID, SubscriptionStatusCanceled); updateErr != nil {
		err = s.mapError(updateErr)
		return Subscription{}, err
	}
	sub.Status = SubscriptionStatusCanceled

	return sub, nil
}

func validateSubscribeRequest(req SubscribeRequest) error {
	if err := req.Mode.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(req.DonationID) == "" {
		return fmt.Errorf("core: donation id is required")
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return fmt.Errorf("core: source token is required")
	}
	if req.AmountMinor <= 0 {
		return fmt.Errorf("core: charge amount is invalid: %d", req.AmountMinor)
	}
	if strings.TrimSpace(req.Currency) == "" {
		return fmt.Errorf("core: currency is required")
	}
	if err := req.Cadence.Validate(); err != nil {
		return err
	}
	return nil
}
