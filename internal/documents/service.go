package documents

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"firmaec/signing-portal/internal/certinfo"
	"firmaec/signing-portal/internal/stamp"
	"firmaec/signing-portal/pkg/signing"
)

var (
	ErrDocumentNotFound = errors.New("documents: document not found")
	ErrOutOfOrderSigner = errors.New("documents: not this signer's turn")
)

// Clock supplies server-assigned instants; swap it in tests.
type Clock func() time.Time

// Placement positions the stamp on the page. Height follows from the stamp's
// aspect ratio.
type Placement struct {
	PageIndex int
	X         float64
	Y         float64
	Width     float64
}

type SignRequest struct {
	DocumentID   uuid.UUID
	SignerLevel  int
	Certificate  []byte
	CertFilename string
	Password     string
	Reason       string
	Location     string
	Placement    Placement
}

type SignResult struct {
	Document    *Document
	Signature   *Signature
	SignedPDF   []byte
	Certificate *certinfo.Summary
}

type Service interface {
	CreateDocument(ctx context.Context, filename string, content []byte) (*Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	GetDocumentWithSignatures(ctx context.Context, id uuid.UUID) (*Document, []Signature, error)
	ListPending(ctx context.Context) ([]Document, error)
	DownloadDocument(ctx context.Context, id uuid.UUID) ([]byte, *Document, error)
	Sign(ctx context.Context, req SignRequest) (*SignResult, error)
}

type signingService struct {
	repo      Repository
	storage   *StorageProvider
	inspector *certinfo.Inspector
	composer  *stamp.Composer
	engine    signing.Engine
	clock     Clock
	logger    *zap.Logger

	// locks serializes the level check-and-increment per document. The
	// repository's compare-and-increment is the hard guarantee; the lock keeps
	// losers from re-signing and re-uploading bytes they will never commit.
	locks *lockTable
}

func NewService(repo Repository, storage *StorageProvider, inspector *certinfo.Inspector,
	composer *stamp.Composer, engine signing.Engine, clock Clock, logger *zap.Logger) Service {
	if clock == nil {
		clock = time.Now
	}
	return &signingService{
		repo:      repo,
		storage:   storage,
		inspector: inspector,
		composer:  composer,
		engine:    engine,
		clock:     clock,
		logger:    logger.With(zap.String("service", "documents")),
		locks:     newLockTable(),
	}
}

func (s *signingService) CreateDocument(ctx context.Context, filename string, content []byte) (*Document, error) {
	doc := &Document{
		ID:                 uuid.New(),
		OriginalFilename:   filename,
		Status:             StatusForLevel(1),
		CurrentSignerLevel: 1,
		CreatedAt:          s.clock().UTC(),
	}
	doc.StoragePath = doc.ID.String()

	if err := s.storage.Store(ctx, doc.StoragePath, content); err != nil {
		return nil, err
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document registered",
		zap.String("document_id", doc.ID.String()),
		zap.String("filename", filename))
	return doc, nil
}

func (s *signingService) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := s.repo.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return doc, nil
}

func (s *signingService) ListPending(ctx context.Context) ([]Document, error) {
	return s.repo.ListPending(ctx)
}

// GetDocumentWithSignatures loads the record and its signature history with a
// single existence check.
func (s *signingService) GetDocumentWithSignatures(ctx context.Context, id uuid.UUID) (*Document, []Signature, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	signatures, err := s.repo.ListSignatures(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, signatures, nil
}

func (s *signingService) DownloadDocument(ctx context.Context, id uuid.UUID) ([]byte, *Document, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.storage.Fetch(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return data, doc, nil
}

// Sign runs the full compose→engine→commit sequence for one signer level. It
// either completes or fails without partial commit: the database transition
// happens last, after the engine succeeded.
func (s *signingService) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	lock := s.locks.acquire(req.DocumentID)
	defer s.locks.release(req.DocumentID, lock)

	doc, err := s.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.CurrentSignerLevel != req.SignerLevel {
		return nil, fmt.Errorf("%w: document expects level %d, got %d",
			ErrOutOfOrderSigner, doc.CurrentSignerLevel, req.SignerLevel)
	}

	if req.CertFilename != "" && !strings.HasSuffix(strings.ToLower(req.CertFilename), ".p12") {
		return nil, certinfo.ErrUnsupportedArchiveFormat
	}
	info, err := s.inspector.Load(req.Certificate, req.Password)
	if err != nil {
		return nil, err
	}
	signerName := info.DisplayName()

	pdfBytes, err := s.storage.Fetch(ctx, doc.StoragePath)
	if err != nil {
		return nil, err
	}

	// One instant feeds both the QR payload and the recorded signature.
	signedAt := s.clock()
	stampImage, err := s.composer.Generate(signerName, req.Reason, req.Location, signedAt)
	if err != nil {
		return nil, err
	}

	bounds := stampImage.Bounds()
	aspect := 1.0
	if bounds.Dx() > 0 {
		aspect = float64(bounds.Dy()) / float64(bounds.Dx())
	}
	rect := signing.Rect{
		X:      req.Placement.X,
		Y:      req.Placement.Y,
		Width:  req.Placement.Width,
		Height: math.Max(1, math.Round(req.Placement.Width*aspect)),
	}

	signedPDF, err := s.engine.Apply(ctx, signing.ApplyRequest{
		Document:  pdfBytes,
		Stamp:     stampImage,
		PageIndex: req.Placement.PageIndex,
		Rect:      rect,
		FieldName: s.uniqueFieldName(ctx, pdfBytes),
		SignedBy:  signerName,
		Reason:    req.Reason,
		Location:  req.Location,
	})
	if err != nil {
		if errors.Is(err, signing.ErrPageIndexOutOfRange) {
			return nil, err
		}
		var engineErr *signing.EngineError
		if !errors.As(err, &engineErr) {
			err = &signing.EngineError{Detail: err.Error(), Err: err}
		}
		s.logger.Error("signing engine failed",
			zap.String("document_id", doc.ID.String()),
			zap.Int("level", req.SignerLevel),
			zap.Error(err))
		return nil, err
	}

	if err := s.storage.Store(ctx, doc.StoragePath, signedPDF); err != nil {
		return nil, err
	}

	sig := &Signature{
		ID:          uuid.New(),
		DocumentID:  doc.ID,
		SignedBy:    signerName,
		SignerLevel: req.SignerLevel,
		SignedAt:    signedAt.UTC(),
	}
	newLevel := doc.CurrentSignerLevel + 1
	newStatus := StatusForLevel(newLevel)
	if err := s.repo.CommitSignature(ctx, sig, req.SignerLevel, newStatus); err != nil {
		return nil, err
	}
	doc.CurrentSignerLevel = newLevel
	doc.Status = newStatus

	s.logger.Info("document signed",
		zap.String("document_id", doc.ID.String()),
		zap.String("signed_by", signerName),
		zap.Int("level", req.SignerLevel))

	return &SignResult{
		Document:    doc,
		Signature:   sig,
		SignedPDF:   signedPDF,
		Certificate: info.Summarize(),
	}, nil
}

// lockTable hands out one mutex per in-flight document and evicts entries
// once the last holder releases, so the table stays proportional to
// concurrent sign attempts rather than total document count.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*docLock)}
}

func (t *lockTable) acquire(id uuid.UUID) *docLock {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &docLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return l
}

func (t *lockTable) release(id uuid.UUID, l *docLock) {
	l.mu.Unlock()

	t.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// uniqueFieldName picks a signature field name that does not collide with any
// field already in the document. When field introspection fails, a random
// suffix keeps the name unique anyway.
func (s *signingService) uniqueFieldName(ctx context.Context, document []byte) string {
	const base = "QRSignature"

	names, err := s.engine.FieldNames(ctx, document)
	if err != nil {
		return fmt.Sprintf("%s_%s", base, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}

	existing := make(map[string]struct{}, len(names))
	for _, n := range names {
		existing[n] = struct{}{}
	}
	name := base
	for counter := 1; ; counter++ {
		if _, taken := existing[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, counter)
	}
}
