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

type SubscriptionStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentSubscriptionRecord]
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*paymentSubscriptionRecord](db, subscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{db: db, repo: repo}, nil
}

func (s *SubscriptionStore) Create(ctx context.Context, in core.Subscription) (core.Subscription, error) {
	if s == nil || s.repo == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	if err := in.Mode.Validate(); err != nil {
		return core.Subscription{}, err
	}
	if err := in.Cadence.Validate(); err != nil {
		return core.Subscription{}, err
	}
	if strings.TrimSpace(in.DonationID) == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: donation id is required")
	}

	if strings.TrimSpace(string(in.Status)) == "" {
		in.Status = core.SubscriptionStatusPending
	}
	now := time.Now().UTC()
	record := subscriptionFromDomain(in)
	record.ID = strings.TrimSpace(in.ID)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Subscription{}, err
	}
	return subscriptionToDomain(created), nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.repo == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Subscription{}, fmt.Errorf("%w: %q", core.ErrSubscriptionNotFound, id)
		}
		return core.Subscription{}, err
	}
	return subscriptionToDomain(record), nil
}

func (s *SubscriptionStore) GetByGatewayID(ctx context.Context, mode core.Mode, gatewaySubscriptionID string) (core.Subscription, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return core.Subscription{}, err
	}
	gatewaySubscriptionID = strings.TrimSpace(gatewaySubscriptionID)
	if gatewaySubscriptionID == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: gateway subscription id is required")
	}

	record := &paymentSubscriptionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.mode = ?", string(mode)).
		Where("?TableAlias.gateway_subscription_id = ?", gatewaySubscriptionID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Subscription{}, fmt.Errorf("%w: gateway id %q", core.ErrSubscriptionNotFound, gatewaySubscriptionID)
		}
		return core.Subscription{}, err
	}
	return subscriptionToDomain(record), nil
}

func (s *SubscriptionStore) UpdateStatus(ctx context.Context, id string, status core.SubscriptionStatus) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := current.TransitionTo(status, time.Now().UTC()); err != nil {
		return err
	}
	record := subscriptionFromDomain(current)
	record.ID = current.ID
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = current.UpdatedAt
	_, err = s.repo.Update(ctx, record, repository.UpdateByID(current.ID))
	return err
}

func subscriptionFromDomain(in core.Subscription) *paymentSubscriptionRecord {
	return &paymentSubscriptionRecord{
		ID:                    in.ID,
		DonationID:            strings.TrimSpace(in.DonationID),
		Mode:                  string(in.Mode),
		GatewaySubscriptionID: strings.TrimSpace(in.GatewaySubscriptionID),
		GatewayCustomerID:     strings.TrimSpace(in.GatewayCustomerID),
		Cadence:               string(in.Cadence),
		PlanName:              strings.TrimSpace(in.PlanName),
		CustomerRef:           strings.TrimSpace(in.CustomerRef),
		Status:                string(in.Status),
		CreatedAt:             in.CreatedAt,
		UpdatedAt:             in.UpdatedAt,
	}
}

func subscriptionToDomain(record *paymentSubscriptionRecord) core.Subscription {
	if record == nil {
		return core.Subscription{}
	}
	return core.Subscription{
		ID:                    record.ID,
		DonationID:            record.DonationID,
		Mode:                  core.Mode(record.Mode),
		GatewaySubscriptionID: record.GatewaySubscriptionID,
		GatewayCustomerID:     record.GatewayCustomerID,
		Cadence:               core.Cadence(record.Cadence),
		PlanName:              record.PlanName,
		CustomerRef:           record.CustomerRef,
		Status:                core.SubscriptionStatus(record.Status),
		CreatedAt:             record.CreatedAt,
		UpdatedAt:             record.UpdatedAt,
	}
}

var _ core.SubscriptionStore = (*SubscriptionStore)(nil)
