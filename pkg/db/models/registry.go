package models

// All lists every persisted model, in dependency order. Tests and the sqlite
// dev mode AutoMigrate from it; Postgres uses the goose migrations.
func All() []any {
	return []any{
		&Part{},
		&Set{},
		&SetPart{},
		&CartReservation{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&ProviderOffering{},
		&SharedResourceReservation{},
		&InventoryTransaction{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
