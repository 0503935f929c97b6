package ingestion

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/postgres"
)

// PostgresStore writes to the documents table read by the index source.
type PostgresStore struct {
	db *postgres.Client
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts or replaces doc and clears any earlier soft delete.
// created reports whether the row is new.
func (s *PostgresStore) Upsert(ctx context.Context, doc document.Document) (bool, error) {
	entities, err := json.Marshal(doc.Entities)
	if err != nil {
		return false, fmt.Errorf("encoding entities: %w", err)
	}
	if doc.Entities == nil {
		entities = []byte("[]")
	}
	kind := doc.Kind
	if kind == "" {
		kind = document.KindDocument
	}

	var created bool
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO documents (id, title, description, keywords, owner_id, visibility,
				allowed_users, kind, entities, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				keywords = EXCLUDED.keywords,
				owner_id = EXCLUDED.owner_id,
				visibility = EXCLUDED.visibility,
				allowed_users = EXCLUDED.allowed_users,
				kind = EXCLUDED.kind,
				entities = EXCLUDED.entities,
				deleted_at = NULL
			RETURNING (xmax = 0)`,
			doc.ID, doc.Title, doc.Description, pq.Array(nonNil(doc.Keywords)), doc.OwnerID,
			string(doc.EffectiveVisibility()), pq.Array(nonNil(doc.AllowedUsers)), string(kind),
			entities, doc.CreatedAt,
		).Scan(&created)
	})
	if err != nil {
		return false, fmt.Errorf("upserting document: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE documents SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("soft-deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
