// internal/planning/access.go
package planning

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "analytics-assistant/internal/common/errors"
)

// AccessResolver returns the entities a caller may query.
type AccessResolver interface {
	ResolveEntities(ctx context.Context, callerID string) ([]string, error)
}

// StaticResolver grants the same entities to every caller.
type StaticResolver []string

// ResolveEntities returns the fixed list regardless of caller.
func (s StaticResolver) ResolveEntities(context.Context, string) ([]string, error) {
	return append([]string(nil), s...), nil
}

// PostgresResolver reads the entity_access table of the historical store.
type PostgresResolver struct {
	db    *sql.DB
	limit int
}

// NewPostgresResolver reads the entity access table through db.
func NewPostgresResolver(db *sql.DB, limit int) *PostgresResolver {
	if limit <= 0 {
		limit = 1000
	}
	return &PostgresResolver{db: db, limit: limit}
}

const accessQuery = `
	SELECT entity_id
	FROM entity_access
	WHERE caller_id = $1 AND revoked_at IS NULL
	ORDER BY entity_id
	LIMIT $2
`

// ResolveEntities lists the entities callerID may query, up to the limit.
func (r *PostgresResolver) ResolveEntities(ctx context.Context, callerID string) ([]string, error) {
	if callerID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, accessQuery, callerID, r.limit)
	if err != nil {
		return nil, apperrors.NewBackendUnavailableError("access", fmt.Errorf("query entity access: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewBackendUnavailableError("access", fmt.Errorf("scan entity access: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewBackendUnavailableError("access", err)
	}
	return ids, nil
}
