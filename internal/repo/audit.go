package repo

import (
	"context"
	"fmt"

	"tickethub/models"

	"github.com/pocketbase/pocketbase/core"
)

type auditRepo struct {
	app core.App
}

// Append writes an immutable audit row. Entries are never updated or deleted.
func (r *auditRepo) Append(ctx context.Context, e *models.AuditEntry) error {
	collection, err := r.app.FindCollectionByNameOrId("audit_logs")
	if err != nil {
		return fmt.Errorf("audit.Append: %w", err)
	}

	rec := core.NewRecord(collection)
	rec.Set("entity", e.Entity)
	rec.Set("entity_id", e.EntityID)
	rec.Set("action", e.Action)
	rec.Set("description", e.Description)
	rec.Set("actor", e.Actor)

	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("audit.Append: %w", err)
	}

	e.ID = rec.Id
	e.Created = rec.GetDateTime("created").Time()
	return nil
}
