package documents

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StatusCompleted is the terminal state. Nothing flips a document to it
// automatically today: a successful sign always advances to the next pending
// level, even when no further signer is configured. Pending product decision.
const StatusCompleted = "COMPLETED"

// StatusForLevel derives the human-readable status from the signer level.
func StatusForLevel(level int) string {
	return fmt.Sprintf("PENDING_LEVEL_%d", level)
}

// Document is a PDF moving through the sequential signing workflow. Only the
// workflow mutates it; CurrentSignerLevel is monotonically non-decreasing.
type Document struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	OriginalFilename   string    `json:"original_filename" db:"original_filename"`
	StoragePath        string    `json:"storage_path" db:"storage_path"`
	Status             string    `json:"status" db:"status"`
	CurrentSignerLevel int       `json:"current_signer_level" db:"current_signer_level"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Signature is one applied countersignature. Append-only: created exactly
// once per successful sign, never mutated or deleted.
type Signature struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DocumentID  uuid.UUID `json:"document_id" db:"document_id"`
	SignedBy    string    `json:"signed_by" db:"signed_by"`
	SignerLevel int       `json:"signer_level" db:"signer_level"`
	SignedAt    time.Time `json:"signed_at" db:"signed_at"`
}
