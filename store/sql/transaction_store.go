package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type TransactionStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentTransactionRecord]
}

func NewTransactionStore(db *bun.DB) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*paymentTransactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid transaction repository wiring: %w", err)
		}
	}
	return &TransactionStore{db: db, repo: repo}, nil
}

func (s *TransactionStore) Create(ctx context.Context, in core.Transaction) (core.Transaction, error) {
	if s == nil || s.repo == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	if err := in.Mode.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(in.DonationID) == "" {
		return core.Transaction{}, fmt.Errorf("sqlstore: donation id is required")
	}

	if strings.TrimSpace(string(in.Status)) == "" {
		in.Status = core.TransactionStatusPending
	}
	now := time.Now().UTC()
	record := transactionFromDomain(in)
	record.ID = strings.TrimSpace(in.ID)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Transaction{}, err
	}
	return transactionToDomain(created), nil
}

func (s *TransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	if s == nil || s.repo == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrTransactionNotFound, id)
		}
		return core.Transaction{}, err
	}
	return transactionToDomain(record), nil
}

func (s *TransactionStore) GetByGatewayID(ctx context.Context, mode core.Mode, gatewayTransactionID string) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return core.Transaction{}, err
	}
	gatewayTransactionID = strings.TrimSpace(gatewayTransactionID)
	if gatewayTransactionID == "" {
		return core.Transaction{}, fmt.Errorf("sqlstore: gateway transaction id is required")
	}

	record := &paymentTransactionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.mode = ?", string(mode)).
		Where("?TableAlias.gateway_transaction_id = ?", gatewayTransactionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("%w: gateway id %q", core.ErrTransactionNotFound, gatewayTransactionID)
		}
		return core.Transaction{}, err
	}
	return transactionToDomain(record), nil
}

func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, status core.TransactionStatus) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: transaction store is not configured")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := current.TransitionTo(status, time.Now().UTC()); err != nil {
		return err
	}
	record := transactionFromDomain(current)
	record.ID = current.ID
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = current.UpdatedAt
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(current.ID))
	return err
}

func transactionFromDomain(in core.Transaction) *paymentTransactionRecord {
	return &paymentTransactionRecord{
		ID:                   in.ID,
		DonationID:           strings.TrimSpace(in.DonationID),
		Mode:                 string(in.Mode),
		GatewayTransactionID: strings.TrimSpace(in.GatewayTransactionID),
		AmountMinor:          in.AmountMinor,
		Currency:             strings.ToUpper(strings.TrimSpace(in.Currency)),
		LocationID:           strings.TrimSpace(in.LocationID),
		Note:                 in.Note,
		Kind:                 string(in.Kind),
		Status:               string(in.Status),
		CreatedAt:            in.CreatedAt,
		UpdatedAt:            in.UpdatedAt,
	}
}

func transactionToDomain(record *paymentTransactionRecord) core.Transaction {
	if record == nil {
		return core.Transaction{}
	}
	return core.Transaction{
		ID:                   record.ID,
		DonationID:           record.DonationID,
		Mode:                 core.Mode(record.Mode),
		GatewayTransactionID: record.GatewayTransactionID,
		AmountMinor:          record.AmountMinor,
		Currency:             record.Currency,
		LocationID:           record.LocationID,
		Note:                 record.Note,
		Kind:                 core.TransactionKind(record.Kind),
		Status:               core.TransactionStatus(record.Status),
		CreatedAt:            record.CreatedAt,
		UpdatedAt:            record.UpdatedAt,
	}
}

var _ core.TransactionStore = (*TransactionStore)(nil)
