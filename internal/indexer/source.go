package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	keywords      TEXT[] NOT NULL DEFAULT '{}',
	owner_id      TEXT NOT NULL,
	visibility    TEXT NOT NULL DEFAULT 'owner',
	allowed_users TEXT[] NOT NULL DEFAULT '{}',
	kind          TEXT NOT NULL DEFAULT 'document',
	entities      JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_documents_live_created
	ON documents (created_at DESC) WHERE deleted_at IS NULL;
`

const selectColumns = `id, title, description, keywords, owner_id, visibility,
	allowed_users, kind, entities, created_at`

// PostgresSource reads documents from the documents table.
type PostgresSource struct {
	client *postgres.Client
}

func NewPostgresSource(client *postgres.Client) *PostgresSource {
	return &PostgresSource{client: client}
}

// EnsureSchema creates the documents table and its index if missing.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("creating documents schema: %w", err)
		}
		return nil
	})
}

func (s *PostgresSource) ListVisibleDocuments(ctx context.Context, limit int) ([]document.Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents
		WHERE deleted_at IS NULL ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.client.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresSource) GetDocument(ctx context.Context, id string) (document.Document, error) {
	row := s.client.DB.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM documents WHERE id = $1 AND deleted_at IS NULL`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Document{}, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id)
	}
	return doc, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (document.Document, error) {
	var (
		doc        document.Document
		visibility string
		kind       string
		entities   []byte
	)
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Description, pq.Array(&doc.Keywords),
		&doc.OwnerID, &visibility, pq.Array(&doc.AllowedUsers), &kind,
		&entities, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return doc, err
		}
		return doc, fmt.Errorf("scanning document: %w", err)
	}
	doc.Visibility = document.Visibility(visibility)
	doc.Kind = document.Kind(kind)
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &doc.Entities); err != nil {
			return doc, fmt.Errorf("decoding entities of document %s: %w", doc.ID, err)
		}
	}
	return doc, nil
}

// MemorySource is an in-process document source backed by a map. It serves
// the operator CLI and tests.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]document.Document
}

func NewMemorySource(docs ...document.Document) *MemorySource {
	s := &MemorySource{docs: make(map[string]document.Document, len(docs))}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

// LoadJSONFile reads a JSON array of documents into a MemorySource.
func LoadJSONFile(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file %s: %w", path, err)
	}
	var docs []document.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}
	return NewMemorySource(docs...), nil
}

func (s *MemorySource) Put(doc document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

func (s *MemorySource) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
}

func (s *MemorySource) ListVisibleDocuments(ctx context.Context, limit int) ([]document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs := make([]document.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *MemorySource) GetDocument(_ context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id)
	}
	return d, nil
}
