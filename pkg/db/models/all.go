package models

// All lists every persisted model in foreign-key order.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&CartItem{},
		&SavedItem{},
		&WishlistItem{},
		&Subscription{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&Review{},
		&ReviewVote{},
		&RefillSuggestion{},
		&InventoryAlert{},
		&OutboxEvent{},
	}
}
