package customer

import (
	"context"
	"log/slog"

	"customer-service/internal/pkg/apperrors"
	"customer-service/internal/pkg/docstore"
)

const (
	UsernameIndexName  = "username_searchIndex"
	UsernameIndexField = "username"
)

// IndexBootstrapper makes sure the username search index exists before the
// service accepts writes.
type IndexBootstrapper struct {
	coll   docstore.Collection
	def    docstore.IndexDefinition
	logger *slog.Logger
}

func NewIndexBootstrapper(coll docstore.Collection, def docstore.IndexDefinition, logger *slog.Logger) *IndexBootstrapper {
	if coll == nil {
		panic("collection cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if def.Name == "" {
		def.Name = UsernameIndexName
	}
	if def.Field == "" {
		def.Field = UsernameIndexField
	}
	return &IndexBootstrapper{
		coll:   coll,
		def:    def,
		logger: logger.With("component", "IndexBootstrapper", "index", def.Name),
	}
}

// EnsureUsernameIndex is idempotent: once the index exists further calls only
// check for it.
func (b *IndexBootstrapper) EnsureUsernameIndex(ctx context.Context) error {
	exists, err := b.coll.IndexExists(ctx, b.def.Name)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to look up index", slog.Any("error", err))
		return apperrors.WrapStoreError(apperrors.ErrStoreUnavailable, err, "failed to look up username index")
	}
	if exists {
		b.logger.DebugContext(ctx, "Index already present")
		return nil
	}

	b.logger.InfoContext(ctx, "Index not found, creating", "field", b.def.Field, "unique", b.def.Unique)
	if err := b.coll.CreateIndex(ctx, b.def); err != nil {
		b.logger.ErrorContext(ctx, "Failed to create index", slog.Any("error", err))
		return apperrors.WrapStoreError(apperrors.ErrStoreUnavailable, err, "failed to create username index")
	}
	b.logger.InfoContext(ctx, "Index created")
	return nil
}
