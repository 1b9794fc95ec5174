package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/medcart-backend/internal/cart"
	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/db/models"
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/outbox"
	"github.com/angelmondragon/medcart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/medcart-backend/pkg/pagination"
	"github.com/angelmondragon/medcart-backend/pkg/pricing"
)

// Service is the order ledger: checkout, reorder, and the admin status machine.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, info DeliveryInfo) (*OrderDTO, error)
	Reorder(ctx context.Context, userID, orderID uuid.UUID) (*ReorderResult, error)
	UpdateStatus(ctx context.Context, change StatusChange) (*OrderDTO, error)
	Edit(ctx context.Context, orderID uuid.UUID, edit OrderEdit) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*ListResult, error)
	GetAny(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	History(ctx context.Context, orderID uuid.UUID) ([]HistoryDTO, error)
	HasDeliveredPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error)

	// CreateFromSubscription runs inside the delivery job's transaction.
	CreateFromSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription) (*models.Order, error)
}

// StatusChange is an administrator's request to move an order.
type StatusChange struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	ActorID uuid.UUID
	Notes   *string
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Cart    cartService
	Stock   stockKeeper
	Refills refillRecorder
	Outbox  outboxPublisher
	Metrics orderMetrics
	Policy  pricing.Policy
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	cart    cartService
	stock   stockKeeper
	refills refillRecorder
	outbox  outboxPublisher
	metrics orderMetrics
	policy  pricing.Policy
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock keeper required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		cart:    params.Cart,
		stock:   params.Stock,
		refills: params.Refills,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		policy:  params.Policy,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Create converts the user's cart into a pending order and clears the cart.
func (s *service) Create(ctx context.Context, userID uuid.UUID, info DeliveryInfo) (*OrderDTO, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := tx.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		resolved, err := info.resolve(&user)
		if err != nil {
			return err
		}

		items, err := s.cart.ItemsTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		now := s.now().UTC()
		orderItems := make([]models.OrderItem, 0, len(items))
		lines := make([]pricing.Line, 0, len(items))
		productIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			orderItem, err := s.snapshot(item, now)
			if err != nil {
				return err
			}
			orderItems = append(orderItems, orderItem)
			lines = append(lines, pricing.Line{UnitPrice: orderItem.UnitPrice, Quantity: orderItem.Quantity})
			productIDs = append(productIDs, orderItem.ProductID)
		}
		totals := s.policy.ComputeLines(lines)

		order := &models.Order{
			OrderNumber:     newOrderNumber(now),
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			DeliveryAddress: resolved.DeliveryAddress,
			PhoneNumber:     resolved.PhoneNumber,
			PaymentMethod:   resolved.PaymentMethod,
			Notes:           resolved.Notes,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			DeliveryFee:     totals.DeliveryFee,
			Total:           totals.Total,
			Items:           orderItems,
		}
		if err := s.insert(ctx, tx, order, &userID, nil); err != nil {
			return err
		}
		if err := s.cart.ClearTx(ctx, tx, userID); err != nil {
			return err
		}
		if s.refills != nil {
			if err := s.refills.RecordPurchaseTx(ctx, tx, userID, order.ID, productIDs, now); err != nil {
				return err
			}
		}
		created = order
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) && s.metrics != nil {
			s.metrics.StockRejected("checkout")
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.OrderCreated("checkout")
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, created.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "order_number", created.OrderNumber), "order.created")
	}
	dto := ToDTO(*created)
	return &dto, nil
}

// snapshot freezes a cart line's name and current price into an order item.
func (s *service) snapshot(item models.CartItem, now time.Time) (models.OrderItem, error) {
	p := item.Product
	if p == nil || !p.Purchasable(now) {
		return models.OrderItem{}, pkgerrors.New(pkgerrors.CodeValidation, "cart contains an unavailable product").
			WithDetails(map[string]any{"product_id": item.ProductID})
	}
	if available := p.AvailableStock(); item.Quantity > available {
		return models.OrderItem{}, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for "+p.Name).
			WithDetails(map[string]any{
				"product_id": p.ID,
				"requested":  item.Quantity,
				"available":  available,
			})
	}
	return models.OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    item.Quantity,
		LineTotal:   pricing.LineTotal(p.Price, item.Quantity),
	}, nil
}

// insert persists a new order with its first history row and order.created event.
func (s *service) insert(ctx context.Context, tx *gorm.DB, order *models.Order, actorID *uuid.UUID, notes *string) error {
	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	if err := repo.InsertHistory(ctx, &models.OrderStatusHistory{
		OrderID:  order.ID,
		ToStatus: order.Status,
		Notes:    notes,
		ActorID:  actorID,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order history")
	}

	var actor *outbox.ActorRef
	if actorID != nil {
		actor = &outbox.ActorRef{UserID: *actorID, Role: enums.UserRoleCustomer}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			UserID:         order.UserID,
			SubscriptionID: order.SubscriptionID,
			ItemCount:      len(order.Items),
			Total:          order.Total,
		},
	})
}

// Reorder re-adds a delivered order's items to the cart at today's prices.
// Items that cannot be added are skipped and reported, never fatal.
func (s *service) Reorder(ctx context.Context, userID, orderID uuid.UUID) (*ReorderResult, error) {
	result := &ReorderResult{SourceOrderID: orderID, Added: []ReorderLine{}, Skipped: []SkippedItem{}}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindForUser(ctx, userID, orderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeValidation, "only delivered orders can be reordered").
				WithDetails(map[string]any{"status": order.Status})
		}

		for _, item := range order.Items {
			err := s.cart.AddItemTx(ctx, tx, userID, item.ProductID, item.Quantity)
			if err == nil {
				result.Added = append(result.Added, ReorderLine{
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					Quantity:    item.Quantity,
				})
				continue
			}
			reason := cart.Reason(err)
			if reason == "" {
				return err
			}
			result.Skipped = append(result.Skipped, SkippedItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Reason:      reason,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := s.cart.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Cart = view
	return result, nil
}

// UpdateStatus applies one administrator transition. Entering shipped takes
// uncommitted units out of stock; cancelling puts committed units back.
func (s *service) UpdateStatus(ctx context.Context, change StatusChange) (*OrderDTO, error) {
	if !change.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]string{"status": string(change.Status)})
	}

	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, change.OrderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		from = order.Status
		to := change.Status
		if !CanTransition(from, to) {
			return invalidTransition(from, to)
		}

		now := s.now().UTC()
		updates := map[string]any{"status": to, "updated_at": now}
		switch to {
		case enums.OrderStatusShipped:
			if err := s.commitStock(ctx, tx, repo, order); err != nil {
				return err
			}
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
		case enums.OrderStatusCancelled:
			if err := s.restock(ctx, tx, repo, order); err != nil {
				return err
			}
		}

		affected, err := repo.UpdateStatus(ctx, order.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		actorID := change.ActorID
		if err := repo.InsertHistory(ctx, &models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: &from,
			ToStatus:   to,
			Notes:      change.Notes,
			ActorID:    &actorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order history")
		}

		event := payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        from,
			To:          to,
		}
		if change.Notes != nil {
			event.Notes = *change.Notes
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: enums.UserRoleAdmin},
			Data:          event,
		})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) && s.metrics != nil {
			s.metrics.StockRejected("ship")
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.StatusChanged(string(from), string(change.Status))
	}
	return s.GetAny(ctx, change.OrderID)
}

func (s *service) commitStock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	committed := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if item.StockCommitted {
			continue
		}
		if err := s.stock.DecrementOnFulfillment(ctx, tx, item.ProductID, item.Quantity, false); err != nil {
			return err
		}
		committed = append(committed, item.ID)
	}
	if err := repo.SetItemsCommitted(ctx, committed, true); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order items committed")
	}
	return nil
}

func (s *service) restock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	returned := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if !item.StockCommitted {
			continue
		}
		if err := s.stock.Restock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		returned = append(returned, item.ID)
	}
	if err := repo.SetItemsCommitted(ctx, returned, false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order items restocked")
	}
	return nil
}

// CreateFromSubscription builds the pending order for one due delivery. Its
// units come out of the subscription's reservation, so lines are created
// already committed.
func (s *service) CreateFromSubscription(ctx context.Context, tx *gorm.DB, sub *models.Subscription) (*models.Order, error) {
	product := sub.Product
	if product == nil {
		var loaded models.Product
		if err := tx.WithContext(ctx).First(&loaded, "id = ?", sub.ProductID).Error; err != nil {
			return nil, notFoundOr(err, "product not found", "load product")
		}
		product = &loaded
	}
	now := s.now().UTC()
	if !product.Purchasable(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscribed product is no longer available").
			WithDetails(map[string]any{"product_id": product.ID})
	}

	var user models.User
	if err := tx.WithContext(ctx).First(&user, "id = ?", sub.UserID).Error; err != nil {
		return nil, notFoundOr(err, "subscriber not found", "load subscriber")
	}
	info, err := DeliveryInfo{PaymentMethod: enums.PaymentMethodCOD}.resolve(&user)
	if err != nil {
		return nil, err
	}

	lineTotal := pricing.LineTotal(product.Price, sub.Quantity)
	totals := s.policy.Compute(lineTotal)
	subscriptionID := sub.ID
	notes := "Subscription delivery for " + sub.NextDelivery.UTC().Format("2006-01-02")
	order := &models.Order{
		OrderNumber:     newOrderNumber(now),
		UserID:          sub.UserID,
		SubscriptionID:  &subscriptionID,
		Status:          enums.OrderStatusPending,
		DeliveryAddress: info.DeliveryAddress,
		PhoneNumber:     info.PhoneNumber,
		PaymentMethod:   enums.PaymentMethodSubscription,
		Notes:           &notes,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		DeliveryFee:     totals.DeliveryFee,
		Total:           totals.Total,
		Items: []models.OrderItem{{
			ProductID:      product.ID,
			ProductName:    product.Name,
			UnitPrice:      product.Price,
			Quantity:       sub.Quantity,
			LineTotal:      lineTotal,
			StockCommitted: true,
		}},
	}
	if err := s.insert(ctx, tx, order, nil, &notes); err != nil {
		return nil, err
	}
	return order, nil
}

// Edit changes delivery contact details before shipping, and notes at any time.
func (s *service) Edit(ctx context.Context, orderID uuid.UUID, edit OrderEdit) (*OrderDTO, error) {
	if err := edit.Validate(); err != nil {
		return nil, err
	}
	if edit.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "order not found", "load order")
		}
		touchesDelivery := edit.DeliveryAddress != nil || edit.PhoneNumber != nil
		if touchesDelivery && (order.Status == enums.OrderStatusShipped || order.Status.IsTerminal()) {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery details can no longer be changed").
				WithDetails(map[string]any{"status": order.Status})
		}
		updates := edit.updates()
		updates["updated_at"] = s.now().UTC()
		if _, err := repo.Update(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetAny(ctx, orderID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	return s.list(ctx, ListFilters{UserID: &userID}, params)
}

func (s *service) ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*ListResult, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	return s.list(ctx, ListFilters{Status: status}, params)
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Page(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := make([]OrderDTO, 0, len(page))
	for _, order := range page {
		out = append(out, ToDTO(order))
	}
	return &ListResult{Orders: out, NextCursor: next}, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindForUser(ctx, userID, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	return s.withHistory(ctx, order)
}

func (s *service) GetAny(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	return s.withHistory(ctx, order)
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]HistoryDTO, error) {
	if _, err := s.repo.FindByID(ctx, orderID); err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	rows, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	return toHistoryDTOs(rows), nil
}

func (s *service) HasDeliveredPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	ok, err := s.repo.HasDeliveredPurchase(ctx, userID, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase")
	}
	return ok, nil
}

func (s *service) withHistory(ctx context.Context, order *models.Order) (*OrderDTO, error) {
	rows, err := s.repo.ListHistory(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	dto := ToDTO(*order)
	dto.History = toHistoryDTOs(rows)
	return &dto, nil
}

func notFoundOr(err error, notFoundMsg, op string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
