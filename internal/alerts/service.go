package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
)

const DefaultExpiryWarningDays = 30

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service maintains the admin inventory alert queue.
type Service interface {
	Scan(ctx context.Context) (ScanResult, error)
	ListOpen(ctx context.Context) ([]AlertDTO, error)
	Resolve(ctx context.Context, alertID uuid.UUID) error
}

type ServiceParams struct {
	Repo              *Repository
	Tx                txRunner
	Logger            *logger.Logger
	ExpiryWarningDays int
	Now               func() time.Time
}

type service struct {
	repo        *Repository
	tx          txRunner
	logg        *logger.Logger
	warningDays int
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("alert repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	days := params.ExpiryWarningDays
	if days <= 0 {
		days = DefaultExpiryWarningDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, tx: params.Tx, logg: params.Logger, warningDays: days, now: now}, nil
}

// ScanResult counts the alerts a scan opened and closed.
type ScanResult struct {
	Opened   int `json:"opened"`
	Resolved int `json:"resolved"`
}

type alertKey struct {
	productID uuid.UUID
	alertType enums.InventoryAlertType
}

// Scan reconciles open alerts with current stock and expiry: at most one open
// alert per (product, type), and alerts whose condition cleared are resolved.
func (s *service) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products, err := repo.ActiveProducts(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		open, err := repo.ListOpen(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open alerts")
		}

		wanted := make(map[alertKey]string, len(products))
		for _, p := range products {
			if p.IsLowStock() {
				wanted[alertKey{p.ID, enums.InventoryAlertLowStock}] = fmt.Sprintf(
					"%s is low on stock: %d available (threshold %d)", p.Name, p.AvailableStock(), p.LowStockThreshold)
			}
			if days := p.DaysToExpiry(now); days != nil && *days <= s.warningDays {
				wanted[alertKey{p.ID, enums.InventoryAlertExpiry}] = expiryMessage(p.Name, *days, *p.ExpiryDate)
			}
		}

		var stale []uuid.UUID
		for _, alert := range open {
			key := alertKey{alert.ProductID, alert.AlertType}
			if _, ok := wanted[key]; ok {
				delete(wanted, key)
				continue
			}
			stale = append(stale, alert.ID)
		}

		resolved, err := repo.ResolveMany(ctx, stale, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve alerts")
		}
		result.Resolved = int(resolved)

		for key, message := range wanted {
			if err := repo.Create(ctx, &models.InventoryAlert{
				ProductID: key.productID,
				AlertType: key.alertType,
				Message:   message,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open alert")
			}
			result.Opened++
		}
		return nil
	})
	if err != nil {
		return ScanResult{}, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"opened": result.Opened, "resolved": result.Resolved})
		s.logg.Info(logCtx, "inventory.alerts.scanned")
	}
	return result, nil
}

func expiryMessage(name string, days int, expiry time.Time) string {
	date := expiry.UTC().Format("2006-01-02")
	switch {
	case days < 0:
		return fmt.Sprintf("%s expired on %s", name, date)
	case days == 0:
		return fmt.Sprintf("%s expires today", name)
	default:
		return fmt.Sprintf("%s expires on %s (%d days)", name, date, days)
	}
}

func (s *service) ListOpen(ctx context.Context) ([]AlertDTO, error) {
	rows, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts")
	}
	out := make([]AlertDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// Resolve closes one alert by hand. A later scan reopens it if the condition persists.
func (s *service) Resolve(ctx context.Context, alertID uuid.UUID) error {
	affected, err := s.repo.ResolveMany(ctx, []uuid.UUID{alertID}, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve alert")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "open alert not found")
	}
	return nil
}
