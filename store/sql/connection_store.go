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

// ConnectionStore keeps one credential row per mode. Save replaces the whole
// row; the unique mode index guarantees a duplicate insert loses.
type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentConnectionRecord]
}

func NewConnectionStore(db *bun.DB) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*paymentConnectionRecord](db, connectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	return &ConnectionStore{db: db, repo: repo}, nil
}

func (s *ConnectionStore) Get(ctx context.Context, mode core.Mode) (core.ConnectionRecord, error) {
	if s == nil || s.db == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return core.ConnectionRecord{}, err
	}
	record := &paymentConnectionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.mode = ?", string(mode)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ConnectionRecord{}, fmt.Errorf("%w: mode %q", core.ErrConnectionNotFound, mode)
		}
		return core.ConnectionRecord{}, err
	}
	return connectionToDomain(record), nil
}

func (s *ConnectionStore) Save(ctx context.Context, in core.ConnectionRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := in.Mode.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.GatewayID) == "" {
		return fmt.Errorf("sqlstore: gateway id is required")
	}

	now := time.Now().UTC()
	existing := &paymentConnectionRecord{}
	err := s.db.NewSelect().
		Model(existing).
		Where("?TableAlias.mode = ?", string(in.Mode)).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		record := connectionFromDomain(in)
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		record.UpdatedAt = now
		_, err = s.repo.Update(ctx, record, repository.UpdateByID(existing.ID))
		return err
	case errors.Is(err, sql.ErrNoRows):
		record := connectionFromDomain(in)
		record.ID = uuid.NewString()
		record.CreatedAt = now
		record.UpdatedAt = now
		_, err = s.repo.Create(ctx, record)
		return err
	default:
		return err
	}
}

func (s *ConnectionStore) Clear(ctx context.Context, mode core.Mode) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return err
	}
	_, err := s.db.NewDelete().
		Model((*paymentConnectionRecord)(nil)).
		Where("mode = ?", string(mode)).
		Exec(ctx)
	return err
}

func (s *ConnectionStore) SetProbeResult(ctx context.Context, mode core.Mode, ok bool, reason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return err
	}
	result, err := s.db.NewUpdate().
		Model((*paymentConnectionRecord)(nil)).
		Set("last_probe_ok = ?", ok).
		Set("last_probe_error = ?", strings.TrimSpace(reason)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("mode = ?", string(mode)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("%w: mode %q", core.ErrConnectionNotFound, mode)
	}
	return nil
}

func connectionFromDomain(in core.ConnectionRecord) *paymentConnectionRecord {
	return &paymentConnectionRecord{
		Mode:                  string(in.Mode),
		GatewayID:             strings.TrimSpace(in.GatewayID),
		AccessToken:           in.AccessToken,
		RefreshToken:          in.RefreshToken,
		MerchantID:            strings.TrimSpace(in.MerchantID),
		LocationID:            strings.TrimSpace(in.LocationID),
		LocationCurrency:      strings.ToUpper(strings.TrimSpace(in.LocationCurrency)),
		WebhookSubscriptionID: strings.TrimSpace(in.WebhookSubscriptionID),
		TokenIssuedAt:         in.TokenIssuedAt,
		TokenExpiresAt:        in.TokenExpiresAt,
		LastProbeOK:           in.LastProbeOK,
		LastProbeError:        strings.TrimSpace(in.LastProbeError),
	}
}

func connectionToDomain(record *paymentConnectionRecord) core.ConnectionRecord {
	if record == nil {
		return core.ConnectionRecord{}
	}
	return core.ConnectionRecord{
		Mode:                  core.Mode(record.Mode),
		GatewayID:             record.GatewayID,
		AccessToken:           record.AccessToken,
		RefreshToken:          record.RefreshToken,
		MerchantID:            record.MerchantID,
		LocationID:            record.LocationID,
		LocationCurrency:      record.LocationCurrency,
		WebhookSubscriptionID: record.WebhookSubscriptionID,
		TokenIssuedAt:         record.TokenIssuedAt,
		TokenExpiresAt:        record.TokenExpiresAt,
		LastProbeOK:           record.LastProbeOK,
		LastProbeError:        record.LastProbeError,
		CreatedAt:             record.CreatedAt,
		UpdatedAt:             record.UpdatedAt,
	}
}

var _ core.ConnectionStore = (*ConnectionStore)(nil)
