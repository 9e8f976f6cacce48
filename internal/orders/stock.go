package orders

import (
	"context"
	"sort"

	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type usageRecorder interface {
	RecordUsage(ctx context.Context, tx *gorm.DB, offeringID uuid.UUID, delta int) error
}

// Stock moves the parts behind order items through the ledger. Commit takes
// stock out when an order is placed; Restore puts it back on cancellation.
type Stock struct {
	Sets   sets.Repository
	Ledger ledger.Service
	Usage  usageRecorder
}

// Commit decrements qps*qty for every required BOM line of every real item.
func (s Stock) Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderItem, actorID *uuid.UUID) error {
	return s.move(ctx, tx, orderID, items, -1, ledger.Entry{
		Type:    enums.InventoryTxOrderCommit,
		Reason:  ledger.ReasonOrderCommit,
		ActorID: actorID,
	})
}

// Restore is the inverse of Commit.
func (s Stock) Restore(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderItem, actorID *uuid.UUID) error {
	return s.move(ctx, tx, orderID, items, 1, ledger.Entry{
		Type:    enums.InventoryTxOrderRestore,
		Reason:  ledger.ReasonOrderRestore,
		ActorID: actorID,
	})
}

func (s Stock) move(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []models.OrderItem, sign int, entry ledger.Entry) error {
	setIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if !item.IsSentinel() {
			setIDs = append(setIDs, *item.SetID)
		}
	}
	if len(setIDs) > 0 {
		lines, err := s.Sets.WithTx(tx).RequiredLinesForSets(ctx, setIDs)
		if err != nil {
			return err
		}
		perPart := map[uuid.UUID]int{}
		for _, item := range items {
			if item.IsSentinel() {
				continue
			}
			for _, line := range lines[*item.SetID] {
				perPart[line.PartID] += line.QuantityPerSet * item.Quantity
			}
		}
		// Ascending part id, the same order Reserve locks in.
		partIDs := make([]uuid.UUID, 0, len(perPart))
		for id := range perPart {
			partIDs = append(partIDs, id)
		}
		sort.Slice(partIDs, func(i, j int) bool { return partIDs[i].String() < partIDs[j].String() })

		entry.ReferenceID = &orderID
		for _, partID := range partIDs {
			if perPart[partID] == 0 {
				continue
			}
			if _, err := s.Ledger.ApplyDelta(ctx, tx, partID, sign*perPart[partID], entry); err != nil {
				return err
			}
		}
	}

	if s.Usage == nil {
		return nil
	}
	for _, item := range items {
		if item.OfferingID == nil || *item.OfferingID == uuid.Nil {
			continue
		}
		// Usage counts units sold, so it moves opposite to stock.
		if err := s.Usage.RecordUsage(ctx, tx, *item.OfferingID, -sign*item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
