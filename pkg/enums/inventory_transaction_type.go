package enums

import "fmt"

// InventoryTransactionType classifies a stock ledger row.
type InventoryTransactionType string

const (
	InventoryTxRestock      InventoryTransactionType = "restock"
	InventoryTxAdjustment   InventoryTransactionType = "adjustment"
	InventoryTxOrderCommit  InventoryTransactionType = "order_commit"
	InventoryTxOrderRestore InventoryTransactionType = "order_restore"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTxRestock,
	InventoryTxAdjustment,
	InventoryTxOrderCommit,
	InventoryTxOrderRestore,
}

func (t InventoryTransactionType) String() string {
	return string(t)
}

func (t InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryTransactionType converts raw input into an InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}
