package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"customer-service/internal/pkg/apperrors"
	"customer-service/internal/pkg/docstore"
)

// ConsistencyGuard runs the read-modify-write protocol against the store's
// revision check. It never retries; a conflict goes back to the caller.
type ConsistencyGuard struct {
	coll   docstore.Collection
	logger *slog.Logger
}

func NewConsistencyGuard(coll docstore.Collection, logger *slog.Logger) *ConsistencyGuard {
	if coll == nil {
		panic("collection cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ConsistencyGuard{
		coll:   coll,
		logger: logger.With("component", "ConsistencyGuard"),
	}
}

// PrepareUpdate returns a copy of incoming carrying the current stored
// revision for id. Whatever revision the caller sent is discarded.
func (g *ConsistencyGuard) PrepareUpdate(ctx context.Context, id string, incoming *Customer) (*Customer, error) {
	current, err := g.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := incoming.Clone()
	merged.ID = id
	merged.Rev = current.Rev
	return merged, nil
}

// Write stores merged with its revision as the compare-and-swap token and
// updates merged.Rev on success.
func (g *ConsistencyGuard) Write(ctx context.Context, merged *Customer) error {
	newRev, err := g.coll.Update(ctx, merged.ID, merged.Rev, merged)
	if err != nil {
		return g.classify(ctx, merged.ID, err)
	}
	g.logger.DebugContext(ctx, "Customer written", "id", merged.ID, "rev", newRev)
	merged.Rev = newRev
	return nil
}

func (g *ConsistencyGuard) PrepareDelete(ctx context.Context, id string) (*Customer, error) {
	return g.fetch(ctx, id)
}

func (g *ConsistencyGuard) Remove(ctx context.Context, current *Customer) error {
	if err := g.coll.Remove(ctx, current.ID, current.Rev); err != nil {
		return g.classify(ctx, current.ID, err)
	}
	return nil
}

func (g *ConsistencyGuard) fetch(ctx context.Context, id string) (*Customer, error) {
	var current Customer
	if err := g.coll.Get(ctx, id, &current); err != nil {
		return nil, g.classify(ctx, id, err)
	}
	return &current, nil
}

func (g *ConsistencyGuard) classify(ctx context.Context, id string, err error) error {
	switch {
	case errors.Is(err, docstore.ErrNoDocument):
		g.logger.WarnContext(ctx, "Customer not found", "id", id)
		return fmt.Errorf("%w: customer %s", apperrors.ErrNotFound, id)
	case errors.Is(err, docstore.ErrRevisionConflict):
		g.logger.WarnContext(ctx, "Stale revision rejected by store", "id", id)
		return fmt.Errorf("%w: customer %s was modified concurrently, re-fetch and retry", apperrors.ErrConflict, id)
	case errors.Is(err, docstore.ErrDuplicateKey):
		g.logger.WarnContext(ctx, "Write violates username uniqueness", "id", id)
		return fmt.Errorf("%w: username already taken, customer %s not changed", apperrors.ErrAlreadyExists, id)
	default:
		g.logger.ErrorContext(ctx, "Store operation failed", "id", id, slog.Any("error", err))
		return apperrors.WrapStoreError(apperrors.ErrStoreUnavailable, err, fmt.Sprintf("store operation failed for customer %s", id))
	}
}
