package availability

import (
	"math"

	"github.com/angelmondragon/kitstock-backend/pkg/db/models"
)

// UnboundedAvailability is returned for a set whose bill of materials has no
// required lines.
const UnboundedAvailability = math.MaxInt32

// Line is one required BOM line with the part's current stock.
type Line struct {
	Stock          int
	QuantityPerSet int
}

// LinesFrom converts loaded BOM rows into Lines, dropping optional ones.
func LinesFrom(parts []models.SetPart) []Line {
	lines := make([]Line, 0, len(parts))
	for _, p := range parts {
		if p.IsOptional || p.Part == nil {
			continue
		}
		lines = append(lines, Line{Stock: p.Part.StockQuantity, QuantityPerSet: p.QuantityPerSet})
	}
	return lines
}

// Compute returns how many sets can still be built when reserved sets are
// already held: the minimum over lines of
// floor((stock - reserved*qps) / qps), floored at zero.
func Compute(lines []Line, reserved int) int {
	if len(lines) == 0 {
		return UnboundedAvailability
	}
	if reserved < 0 {
		reserved = 0
	}
	best := UnboundedAvailability
	for _, l := range lines {
		if l.QuantityPerSet <= 0 {
			continue
		}
		if l.Stock <= 0 {
			return 0
		}
		free := l.Stock - reserved*l.QuantityPerSet
		if free <= 0 {
			return 0
		}
		if n := free / l.QuantityPerSet; n < best {
			best = n
		}
	}
	return best
}
