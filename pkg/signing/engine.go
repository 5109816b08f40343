package signing

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrPageIndexOutOfRange is returned by engine adapters when the placement
// targets a page the document does not have. Adapters classify this at the
// boundary and return it typed; nothing in the core parses error text.
var ErrPageIndexOutOfRange = errors.New("signing: page index out of range")

// EngineError carries the external engine's failure detail for diagnostics.
type EngineError struct {
	Detail string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("signing: engine failure: %s", e.Detail)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Rect is the placement rectangle on the target page, in PDF points.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ApplyRequest is everything an engine needs to apply one signature.
type ApplyRequest struct {
	Document  []byte
	Stamp     image.Image
	PageIndex int
	Rect      Rect
	FieldName string
	SignedBy  string
	Reason    string
	Location  string
}

// Engine is the external PDF-signing boundary. Implementations perform the
// actual cryptographic signing; the workflow only composes inputs and
// classifies outcomes. Apply is not idempotent: callers must not blindly
// retry a timed-out call.
type Engine interface {
	// Apply embeds the stamp and signature into the document and returns the
	// signed bytes.
	Apply(ctx context.Context, req ApplyRequest) ([]byte, error)
	// FieldNames lists the signature field names already present in the
	// document, so new fields can avoid collisions.
	FieldNames(ctx context.Context, document []byte) ([]string, error)
}

// stubEngine stands in until a real engine adapter is wired; it passes the
// document through unsigned.
type stubEngine struct{}

func NewEngine() Engine {
	return &stubEngine{}
}

func (e *stubEngine) Apply(ctx context.Context, req ApplyRequest) ([]byte, error) {
	if req.PageIndex < 0 {
		return nil, ErrPageIndexOutOfRange
	}
	return req.Document, nil
}

func (e *stubEngine) FieldNames(ctx context.Context, document []byte) ([]string, error) {
	return nil, nil
}
