package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListPending(ctx context.Context) ([]Document, error)
	ListSignatures(ctx context.Context, documentID uuid.UUID) ([]Signature, error)

	// CommitSignature records the signature and advances the document's level
	// in one transaction. The level update is a compare-and-increment guarded
	// by fromLevel; a stale fromLevel aborts with ErrOutOfOrderSigner and
	// leaves nothing persisted.
	CommitSignature(ctx context.Context, sig *Signature, fromLevel int, newStatus string) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	original_filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	current_signer_level INTEGER NOT NULL CHECK (current_signer_level >= 1),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS signatures (
	id UUID PRIMARY KEY,
	document_id UUID NOT NULL REFERENCES documents(id),
	signed_by TEXT NOT NULL,
	signer_level INTEGER NOT NULL,
	signed_at TIMESTAMPTZ NOT NULL,
	UNIQUE (document_id, signer_level)
);`

// EnsureSchema creates the workflow tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (r *postgresRepository) CreateDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, original_filename, storage_path, status, current_signer_level, created_at
		) VALUES (
			:id, :original_filename, :storage_path, :status, :current_signer_level, :created_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

func (r *postgresRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *postgresRepository) ListPending(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := r.db.SelectContext(ctx, &docs,
		"SELECT * FROM documents WHERE status != $1 ORDER BY created_at DESC", StatusCompleted)
	return docs, err
}

func (r *postgresRepository) ListSignatures(ctx context.Context, documentID uuid.UUID) ([]Signature, error) {
	var signatures []Signature
	err := r.db.SelectContext(ctx, &signatures,
		"SELECT * FROM signatures WHERE document_id = $1 ORDER BY signer_level ASC", documentID)
	return signatures, err
}

func (r *postgresRepository) CommitSignature(ctx context.Context, sig *Signature, fromLevel int, newStatus string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET current_signer_level = current_signer_level + 1, status = $1
		WHERE id = $2 AND current_signer_level = $3`,
		newStatus, sig.DocumentID, fromLevel)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Another sign attempt won the race, or the caller read a stale level.
		return fmt.Errorf("%w: document %s is no longer at level %d",
			ErrOutOfOrderSigner, sig.DocumentID, fromLevel)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO signatures (id, document_id, signed_by, signer_level, signed_at)
		VALUES (:id, :document_id, :signed_by, :signer_level, :signed_at)`, sig)
	if err != nil {
		return err
	}

	return tx.Commit()
}
