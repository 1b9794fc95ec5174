package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/medcart-backend/internal/alerts"
)

type alertScanner interface {
	Scan(ctx context.Context) (alerts.ScanResult, error)
}

// NewInventoryAlertsJob wraps the alert reconciliation scan.
func NewInventoryAlertsJob(scanner alertScanner) (Job, error) {
	if scanner == nil {
		return nil, fmt.Errorf("alert scanner required")
	}
	return &inventoryAlertsJob{scanner: scanner}, nil
}

type inventoryAlertsJob struct {
	scanner alertScanner
}

func (j *inventoryAlertsJob) Name() string { return "inventory_alerts" }

func (j *inventoryAlertsJob) Run(ctx context.Context) error {
	if _, err := j.scanner.Scan(ctx); err != nil {
		return fmt.Errorf("scan inventory alerts: %w", err)
	}
	return nil
}
