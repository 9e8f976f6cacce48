// Package availability computes how many units of a set can be sold right
// now: part stock divided by the bill of materials, less active soft holds.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/kitstock-backend/internal/sets"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	maxBatchSize = 100
	batchFanOut  = 8
)

// Service answers availability questions. Reads take no locks.
type Service interface {
	GetAvailability(ctx context.Context, setID uuid.UUID) (int, error)
	GetMany(ctx context.Context, setIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type service struct {
	sets sets.Repository
	repo Repository
	now  func() time.Time
}

// NewService builds the availability calculator.
func NewService(setRepo sets.Repository, repo Repository) (Service, error) {
	if setRepo == nil {
		return nil, fmt.Errorf("set repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("availability repository required")
	}
	return &service{sets: setRepo, repo: repo, now: time.Now}, nil
}

func (s *service) GetAvailability(ctx context.Context, setID uuid.UUID) (int, error) {
	if setID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "set id is required")
	}
	ctx, span := tracing.Start(ctx, "availability.GetAvailability")
	defer span.End()
	span.SetAttributes(attribute.String("set.id", setID.String()))

	set, err := s.sets.FindSet(ctx, setID)
	if err != nil {
		return 0, err
	}
	if !set.Active {
		return 0, nil
	}
	lines := LinesFrom(set.Parts)
	if len(lines) == 0 {
		return UnboundedAvailability, nil
	}
	reserved, err := s.repo.ReservedForSet(ctx, setID, s.now().UTC(), nil)
	if err != nil {
		return 0, err
	}
	n := Compute(lines, reserved)
	span.SetAttributes(attribute.Int("availability", n))
	return n, nil
}

// GetMany computes availability for several sets concurrently. Duplicate ids
// are collapsed; any failure fails the batch.
func (s *service) GetMany(ctx context.Context, setIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	unique := make([]uuid.UUID, 0, len(setIDs))
	seen := make(map[uuid.UUID]struct{}, len(setIDs))
	for _, id := range setIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one set id is required")
	}
	if len(unique) > maxBatchSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d set ids per request", maxBatchSize))
	}

	results := make([]int, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFanOut)
	for i, id := range unique {
		g.Go(func() error {
			n, err := s.GetAvailability(gctx, id)
			if err != nil {
				return err
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]int, len(unique))
	for i, id := range unique {
		out[id] = results[i]
	}
	return out, nil
}
