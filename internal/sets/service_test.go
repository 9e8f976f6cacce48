package sets

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/pkg/db"
	"github.com/angelmondragon/kitstock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Client(t)
	publisher := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	stock, err := ledger.NewService(client, ledger.NewRepository(client.DB()), publisher, nil, nil)
	require.NoError(t, err)
	svc, err := NewService(client, NewRepository(client.DB()), stock)
	require.NoError(t, err)
	return svc, client
}

func TestCreatePartBooksInitialStockThroughLedger(t *testing.T) {
	svc, client := newTestService(t)

	part, err := svc.CreatePart(context.Background(), CreatePartInput{SKU: "BR-01", Name: "bracket", InitialStock: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, part.StockQuantity)

	var txn models.InventoryTransaction
	require.NoError(t, client.DB().Where("part_id = ?", part.ID).First(&txn).Error)
	assert.Equal(t, 12, txn.Quantity)
	assert.Equal(t, "initial_stock", txn.Reason)
}

func TestCreatePartDuplicateSKU(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreatePart(context.Background(), CreatePartInput{SKU: "BR-01", Name: "bracket"})
	require.NoError(t, err)

	_, err = svc.CreatePart(context.Background(), CreatePartInput{SKU: "BR-01", Name: "other"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateSetAndRequiredLines(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	a, err := svc.CreatePart(ctx, CreatePartInput{SKU: "A", Name: "a", InitialStock: 4})
	require.NoError(t, err)
	b, err := svc.CreatePart(ctx, CreatePartInput{SKU: "B", Name: "b", InitialStock: 4})
	require.NoError(t, err)

	set, err := svc.CreateSet(ctx, CreateSetInput{
		Name:      "starter kit",
		BasePrice: decimal.NewFromInt(30),
		Lines: []LineInput{
			{PartID: a.ID, QuantityPerSet: 2},
			{PartID: b.ID, QuantityPerSet: 1, IsOptional: true},
		},
	})
	require.NoError(t, err)
	assert.True(t, set.Active)

	lines, err := NewRepository(client.DB()).RequiredLines(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, a.ID, lines[0].PartID)
	require.NotNil(t, lines[0].Part)
	assert.Equal(t, 4, lines[0].Part.StockQuantity)

	loaded, err := svc.GetSet(ctx, set.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Parts, 2)
}

func TestCreateSetInactive(t *testing.T) {
	svc, _ := newTestService(t)
	set, err := svc.CreateSet(context.Background(), CreateSetInput{Name: "retired", Inactive: true})
	require.NoError(t, err)

	loaded, err := svc.GetSet(context.Background(), set.ID)
	require.NoError(t, err)
	assert.False(t, loaded.Active)
}

func TestCreateSetValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	partID := uuid.New()

	cases := map[string]CreateSetInput{
		"blank name":    {Name: " "},
		"zero quantity": {Name: "x", Lines: []LineInput{{PartID: partID, QuantityPerSet: 0}}},
		"duplicate":     {Name: "x", Lines: []LineInput{{PartID: partID, QuantityPerSet: 1}, {PartID: partID, QuantityPerSet: 2}}},
		"negative":      {Name: "x", BasePrice: decimal.NewFromInt(-1)},
	}
	for name, in := range cases {
		_, err := svc.CreateSet(ctx, in)
		assert.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: got %v", name, err)
	}

	_, err := svc.CreateSet(ctx, CreateSetInput{Name: "x", Lines: []LineInput{{PartID: partID, QuantityPerSet: 1}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetSetNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetSet(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
