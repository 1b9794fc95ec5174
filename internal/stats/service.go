package stats

import (
	"context"
	"fmt"
	"time"

	product "github.com/angelmondragon/medcart-backend/internal/products"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

const (
	defaultExpiryWindowDays = 30
	recentLimit             = 5
)

// Service builds the administrator dashboard.
type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type ServiceParams struct {
	Repo *Repository
	// ExpiryWindowDays sets how far ahead "expiring soon" looks.
	ExpiryWindowDays int
	Now              func() time.Time
}

type service struct {
	repo       *Repository
	expiryDays int
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stats repository required")
	}
	days := params.ExpiryWindowDays
	if days <= 0 {
		days = defaultExpiryWindowDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, expiryDays: days, now: now}, nil
}

// Dashboard reads each figure separately, so counts taken during heavy write
// traffic may disagree with each other by a few rows.
func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now().UTC()
	out := &Dashboard{ExpiryWindowDays: s.expiryDays, GeneratedAt: now}

	var err error
	if out.TotalSales, out.DeliveredOrders, err = s.repo.DeliveredSales(ctx); err != nil {
		return nil, dependency(err, "sum delivered sales")
	}
	out.TotalSales = out.TotalSales.Round(2)
	if out.OrdersByStatus, err = s.repo.OrdersByStatus(ctx); err != nil {
		return nil, dependency(err, "count orders by status")
	}
	if out.TotalProducts, err = s.repo.CountProducts(ctx); err != nil {
		return nil, dependency(err, "count products")
	}
	if out.LowStockProducts, err = s.repo.CountLowStock(ctx); err != nil {
		return nil, dependency(err, "count low stock products")
	}
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, s.expiryDays)
	if out.ExpiringSoon, err = s.repo.CountExpiringBefore(ctx, cutoff); err != nil {
		return nil, dependency(err, "count expiring products")
	}
	if out.TotalUsers, out.ActiveUsers, err = s.repo.CountUsers(ctx); err != nil {
		return nil, dependency(err, "count users")
	}
	if out.ActiveSubscriptions, err = s.repo.CountActiveSubscriptions(ctx); err != nil {
		return nil, dependency(err, "count subscriptions")
	}
	if out.OpenAlerts, err = s.repo.CountOpenAlerts(ctx); err != nil {
		return nil, dependency(err, "count open alerts")
	}

	orders, err := s.repo.RecentOrders(ctx, recentLimit)
	if err != nil {
		return nil, dependency(err, "list recent orders")
	}
	out.RecentOrders = make([]RecentOrder, 0, len(orders))
	for _, o := range orders {
		out.RecentOrders = append(out.RecentOrders, toRecentOrder(o))
	}

	products, err := s.repo.RecentProducts(ctx, recentLimit)
	if err != nil {
		return nil, dependency(err, "list recent products")
	}
	out.RecentProducts = make([]product.ProductDTO, 0, len(products))
	for _, p := range products {
		out.RecentProducts = append(out.RecentProducts, product.ToDTO(p, now))
	}
	return out, nil
}

func dependency(err error, msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
