package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name     string
		lines    []Line
		reserved int
		want     int
	}{
		{"no lines is unbounded", nil, 0, UnboundedAvailability},
		{"single line", []Line{{Stock: 10, QuantityPerSet: 2}}, 0, 5},
		{"reserved sets shrink availability", []Line{{Stock: 10, QuantityPerSet: 2}}, 3, 2},
		{"min of ratios", []Line{{Stock: 10, QuantityPerSet: 2}, {Stock: 9, QuantityPerSet: 3}}, 0, 3},
		{"out of stock part", []Line{{Stock: 10, QuantityPerSet: 1}, {Stock: 0, QuantityPerSet: 1}}, 0, 0},
		{"over reserved floors at zero", []Line{{Stock: 4, QuantityPerSet: 2}}, 5, 0},
		{"remainder floors", []Line{{Stock: 7, QuantityPerSet: 2}}, 1, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Compute(tc.lines, tc.reserved))
		})
	}
}

func TestLinesFromSkipsOptional(t *testing.T) {
	part := &models.Part{StockQuantity: 6}
	lines := LinesFrom([]models.SetPart{
		{QuantityPerSet: 2, Part: part},
		{QuantityPerSet: 1, IsOptional: true, Part: part},
	})
	want := []Line{{Stock: 6, QuantityPerSet: 2}}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("LinesFrom() mismatch (-want +got):\n%s", diff)
	}
}

type fixture struct {
	conn *gorm.DB
	svc  *service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(sets.NewRepository(conn), NewRepository(conn))
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc.(*service)}
}

func (f fixture) hold(t *testing.T, setID uuid.UUID, qty int, expires time.Time) {
	t.Helper()
	require.NoError(t, f.conn.Create(&models.CartReservation{
		CustomerID: uuid.New(),
		SetID:      setID,
		Quantity:   qty,
		ExpiresAt:  expires.UTC(),
	}).Error)
}

func TestGetAvailabilityScenarios(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	part := dbtest.Part(t, f.conn, 10)
	set := dbtest.Set(t, f.conn, dbtest.Line{Part: part, PerSet: 2})

	n, err := f.svc.GetAvailability(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	f.hold(t, set.ID, 3, time.Now().Add(10*time.Minute))
	n, err = f.svc.GetAvailability(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.hold(t, set.ID, 2, time.Now().Add(-time.Minute))
	n, err = f.svc.GetAvailability(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "expired holds must not count")
}

func TestGetAvailabilityNeverExceedsStockRatio(t *testing.T) {
	f := newFixture(t)
	a := dbtest.Part(t, f.conn, 7)
	b := dbtest.Part(t, f.conn, 100)
	set := dbtest.Set(t, f.conn, dbtest.Line{Part: a, PerSet: 3}, dbtest.Line{Part: b, PerSet: 1})

	n, err := f.svc.GetAvailability(context.Background(), set.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 7/3)
	assert.LessOrEqual(t, n, 100)
}

func TestGetAvailabilityEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	optionalOnly := dbtest.Set(t, f.conn, dbtest.Line{Part: dbtest.Part(t, f.conn, 0), PerSet: 1, Optional: true})
	n, err := f.svc.GetAvailability(ctx, optionalOnly.ID)
	require.NoError(t, err)
	assert.Equal(t, UnboundedAvailability, n)

	inactive := dbtest.Set(t, f.conn, dbtest.Line{Part: dbtest.Part(t, f.conn, 50), PerSet: 1})
	require.NoError(t, f.conn.Model(&models.Set{}).Where("id = ?", inactive.ID).Update("active", false).Error)
	n, err = f.svc.GetAvailability(ctx, inactive.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.GetAvailability(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetAvailability(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetMany(t *testing.T) {
	f := newFixture(t)
	part := dbtest.Part(t, f.conn, 12)
	s1 := dbtest.Set(t, f.conn, dbtest.Line{Part: part, PerSet: 3})
	s2 := dbtest.Set(t, f.conn, dbtest.Line{Part: part, PerSet: 4})

	got, err := f.svc.GetMany(context.Background(), []uuid.UUID{s1.ID, s2.ID, s1.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{s1.ID: 4, s2.ID: 3}, got)

	_, err = f.svc.GetMany(context.Background(), []uuid.UUID{s1.ID, uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetMany(context.Background(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
