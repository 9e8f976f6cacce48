package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
)

// Part inserts a part holding stock units.
func Part(t testing.TB, conn *gorm.DB, stock int) models.Part {
	t.Helper()
	part := models.Part{
		SKU:           "P-" + uuid.NewString()[:8],
		Name:          "part",
		StockQuantity: stock,
	}
	if err := conn.Create(&part).Error; err != nil {
		t.Fatalf("seed part: %v", err)
	}
	return part
}

// Line is a BOM line for Set.
type Line struct {
	Part     models.Part
	PerSet   int
	Optional bool
}

// Set inserts an active direct-sale set priced at 10.00 with the given lines.
func Set(t testing.TB, conn *gorm.DB, lines ...Line) models.Set {
	t.Helper()
	set := models.Set{Name: "kit", Active: true, BasePrice: decimal.NewFromInt(10)}
	for _, l := range lines {
		set.Parts = append(set.Parts, models.SetPart{
			PartID:         l.Part.ID,
			QuantityPerSet: l.PerSet,
			IsOptional:     l.Optional,
		})
	}
	if err := conn.Create(&set).Error; err != nil {
		t.Fatalf("seed set: %v", err)
	}
	return set
}

// ProviderSet is Set owned by providerID.
func ProviderSet(t testing.TB, conn *gorm.DB, providerID uuid.UUID, lines ...Line) models.Set {
	t.Helper()
	set := Set(t, conn, lines...)
	if err := conn.Model(&models.Set{}).Where("id = ?", set.ID).Update("provider_id", providerID).Error; err != nil {
		t.Fatalf("seed provider set: %v", err)
	}
	set.ProviderID = &providerID
	return set
}

// StockOf reloads a part's stock quantity.
func StockOf(t testing.TB, conn *gorm.DB, partID uuid.UUID) int {
	t.Helper()
	var part models.Part
	if err := conn.First(&part, "id = ?", partID).Error; err != nil {
		t.Fatalf("load part: %v", err)
	}
	return part.StockQuantity
}
