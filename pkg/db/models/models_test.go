package models

import (
	"testing"
	"time"
)

func TestProductStockDerivations(t *testing.T) {
	p := Product{StockQuantity: 12, ReservedQuantity: 3, LowStockThreshold: 10}
	if p.AvailableStock() != 9 {
		t.Fatalf("expected 9 available, got %d", p.AvailableStock())
	}
	if !p.IsLowStock() {
		t.Fatalf("9 available with threshold 10 should be low stock")
	}
}

func TestProductExpiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	nextWeek := today.AddDate(0, 0, 7)

	if (Product{ExpiryDate: &today}).IsExpired(now) {
		t.Fatalf("product expiring today is still sellable")
	}
	if !(Product{ExpiryDate: &yesterday}).IsExpired(now) {
		t.Fatalf("product expired yesterday should be expired")
	}
	if (Product{}).IsExpired(now) || (Product{}).DaysToExpiry(now) != nil {
		t.Fatalf("products without expiry never expire")
	}
	if days := (Product{ExpiryDate: &nextWeek}).DaysToExpiry(now); days == nil || *days != 7 {
		t.Fatalf("expected 7 days to expiry, got %v", days)
	}
	if (Product{IsActive: true, ExpiryDate: &yesterday}).Purchasable(now) {
		t.Fatalf("expired products are not purchasable")
	}
}
