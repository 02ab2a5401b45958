package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanadhr/askhr-backend/internal/models"
)

// PostgresStore holds tenant-scoped document rows and serves keyword
// retrieval for the streaming endpoints.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the documents table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id             UUID PRIMARY KEY,
			tenant_id      VARCHAR(64)  NOT NULL,
			title          VARCHAR(300) NOT NULL,
			portal         VARCHAR(100) NOT NULL DEFAULT '',
			doc_type       VARCHAR(100) NOT NULL DEFAULT '',
			storage_bucket VARCHAR(100) NOT NULL,
			storage_path   VARCHAR(300) NOT NULL,
			content        TEXT         NOT NULL,
			created_at     TIMESTAMPTZ  DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents (tenant_id);
	`)
	return err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc *models.Document) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, tenant_id, title, portal, doc_type, storage_bucket, storage_path, content)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		doc.ID, doc.TenantID, doc.Title, doc.Portal, doc.DocType,
		doc.StorageBucket, doc.StoragePath, doc.Content,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	var d models.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, title, portal, doc_type, storage_bucket, storage_path, content, created_at
		 FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&d.ID, &d.TenantID, &d.Title, &d.Portal, &d.DocType,
		&d.StorageBucket, &d.StoragePath, &d.Content, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, tenantID string) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, title, portal, doc_type, storage_bucket, storage_path, created_at
		 FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Title, &d.Portal, &d.DocType,
			&d.StorageBucket, &d.StoragePath, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Search runs a tenant-scoped keyword search over title and content, ranked
// by text-search relevance and bounded to limit rows.
func (s *PostgresStore) Search(ctx context.Context, tenantID, query string, filters models.AskFilters, limit int) ([]models.Snippet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, title, portal, doc_type, storage_bucket, storage_path, content, created_at,
		       ts_rank(to_tsvector('simple', title || ' ' || content),
		               plainto_tsquery('simple', $2)) AS rank
		FROM documents
		WHERE tenant_id = $1
		  AND to_tsvector('simple', title || ' ' || content) @@ plainto_tsquery('simple', $2)
		  AND ($3 = '' OR portal = $3)
		  AND ($4 = '' OR doc_type = $4)
		ORDER BY rank DESC
		LIMIT $5`,
		tenantID, query, filters.Portal, filters.DocType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var hits []models.Snippet
	for rows.Next() {
		var sn models.Snippet
		if err := rows.Scan(&sn.Doc.ID, &sn.Doc.TenantID, &sn.Doc.Title, &sn.Doc.Portal,
			&sn.Doc.DocType, &sn.Doc.StorageBucket, &sn.Doc.StoragePath,
			&sn.Doc.Content, &sn.Doc.CreatedAt, &sn.Score); err != nil {
			return nil, err
		}
		hits = append(hits, sn)
	}
	return hits, rows.Err()
}
