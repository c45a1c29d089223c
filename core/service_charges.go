package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChargeSingle submits a one-time charge. The guard runs before any remote
// call: anything other than a connected (or soft-expired) mode fails fast.
// A successful submission records the transaction as pending; settlement
// confirmation arrives through the webhook surface.
func (s *Service) ChargeSingle(ctx context.Context, req ChargeRequest) (txn Transaction, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"gateway_id":  s.gatewayID(),
		"mode":        string(req.Mode),
		"donation_id": req.DonationID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "charge_single", err, fields)
	}()

	if err = validateChargeRequest(req); err != nil {
		err = s.mapError(err)
		return Transaction{}, err
	}

	record, err := s.requireChargeableConnection(ctx, req.Mode)
	if err != nil {
		return Transaction{}, err
	}

	gateway, err := s.resolveGateway()
	if err != nil {
		return Transaction{}, err
	}

	result, chargeErr := gateway.CreatePayment(ctx, record, PaymentRequest{
		SourceToken:    req.SourceToken,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		LocationID:     record.LocationID,
		Note:           req.Note,
		ReferenceID:    req.DonationID,
		IdempotencyKey: uuid.NewString(),
	})
	if chargeErr != nil {
		s.invalidateOnAuthFailure(ctx, req.Mode, chargeErr)
		err = s.mapError(chargeErr)
		return Transaction{}, err
	}

	txn, createErr := s.transactionStore.Create(ctx, Transaction{
		DonationID:           req.DonationID,
		Mode:                 req.Mode,
		GatewayTransactionID: result.GatewayTransactionID,
		AmountMinor:          req.AmountMinor,
		Currency:             req.Currency,
		LocationID:           record.LocationID,
		Note:                 req.Note,
		Kind:                 TransactionKindSingle,
		Status:               TransactionStatusPending,
	})
	if createErr != nil {
		err = s.mapError(createErr)
		return Transaction{}, err
	}

	return txn, nil
}

// Refund issues a refund against a recorded transaction. A record without a
// gateway transaction id was never submitted and cannot be refunded.
func (s *Service) Refund(ctx context.Context, req RefundOrderRequest) (txn Transaction, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"gateway_id":     s.gatewayID(),
		"mode":           string(req.Mode),
		"transaction_id": req.TransactionID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "refund", err, fields)
	}()

	if err = req.Mode.Validate(); err != nil {
		err = s.mapError(err)
		return Transaction{}, err
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		err = s.mapError(fmt.Errorf("core: transaction id is required"))
		return Transaction{}, err
	}

	txn, getErr := s.transactionStore.Get(ctx, req.TransactionID)
	if getErr != nil {
		err = s.mapError(getErr)
		return Transaction{}, err
	}
	if strings.TrimSpace(txn.GatewayTransactionID) == "" {
		err = s.mapError(fmt.Errorf("core: transaction reference is missing for %q", txn.ID))
		return Transaction{}, err
	}

	record, getRecordErr := s.connectionStore.Get(ctx, req.Mode)
	if getRecordErr != nil {
		err = s.mapError(fmt.Errorf("core: mode %q is not connected: %w", req.Mode, getRecordErr))
		return Transaction{}, err
	}

	gateway, err := s.resolveGateway()
	if err != nil {
		return Transaction{}, err
	}

	amount := req.AmountMinor
	if amount <= 0 {
		amount = txn.AmountMinor
	}
	_, refundErr := gateway.CreateRefund(ctx, record, RefundRequest{
		GatewayTransactionID: txn.GatewayTransactionID,
		AmountMinor:          amount,
		Currency:             txn.Currency,
		Reason:               req.Reason,
		IdempotencyKey:       uuid.NewString(),
	})
	if refundErr != nil {
		s.invalidateOnAuthFailure(ctx, req.Mode, refundErr)
		err = s.mapError(refundErr)
		return Transaction{}, err
	}

	return txn, nil
}

func (s *Service) requireChargeableConnection(ctx context.Context, mode Mode) (ConnectionRecord, error) {
	record, getErr := s.connectionStore.Get(ctx, mode)
	if getErr != nil {
		return ConnectionRecord{}, s.mapError(fmt.Errorf("core: mode %q is not connected: %w", mode, getErr))
	}
	status := DeriveStatus(&record, StatusInputs{
		OrgCurrency: s.config.OrgCurrency,
		Now:         s.now(),
		RefreshLead: s.RefreshLead(),
	})
	if StatusBlocksCharges(status) {
		return ConnectionRecord{}, s.mapError(fmt.Errorf("core: mode %q is not connected: status %s", mode, status))
	}
	return record, nil
}

func (s *Service) invalidateOnAuthFailure(ctx context.Context, mode Mode, cause error) {
	if s == nil || cause == nil {
		return
	}
	if Classify(cause) != ClassAuthFailure {
		return
	}
	if probeErr := s.connectionStore.SetProbeResult(ctx, mode, false, cause.Error()); probeErr != nil {
		s.logError(ctx, "record invalidation failed", map[string]any{
			"mode":  string(mode),
			"error": probeErr.Error(),
		})
	}
}

func validateChargeRequest(req ChargeRequest) error {
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
	return nil
}
