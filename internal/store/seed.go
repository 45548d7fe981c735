package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/scooterledger/internal/domain"
)

// SeedLevels upserts the catalog tiers by number in one transaction.
func SeedLevels(ctx context.Context, s Store, levels []domain.Level) error {
	return s.WithTx(ctx, func(q Queries) error {
		for i := range levels {
			l := levels[i]
			if err := q.UpsertLevel(ctx, &l); err != nil {
				return fmt.Errorf("seed level %d: %w", l.Number, err)
			}
		}
		return nil
	})
}
