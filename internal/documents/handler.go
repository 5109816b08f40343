package documents

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"firmaec/signing-portal/internal/certinfo"
	"firmaec/signing-portal/pkg/signing"
	"firmaec/signing-portal/pkg/storage"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Upload)
		docs.GET("/pending", h.ListPending)
		docs.GET("/:id", h.GetDocument)
		docs.GET("/:id/download", h.Download)
		docs.POST("/:id/sign", h.Sign)
	}
}

func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("pdf_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pdf_file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.service.CreateDocument(c.Request.Context(), file.Filename, content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ListPending(c *gin.Context) {
	docs, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	doc, signatures, err := h.service.GetDocumentWithSignatures(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document":   doc,
		"signatures": signatures,
	})
}

func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	data, doc, err := h.service.DownloadDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.OriginalFilename))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) Sign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	certFile, err := c.FormFile("cert_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cert_file is required"})
		return
	}
	password := c.PostForm("password")
	level, err := strconv.Atoi(c.PostForm("signer_level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signer_level must be an integer"})
		return
	}

	reason := c.DefaultPostForm("reason", "Documento revisado y aprobado")
	location := c.DefaultPostForm("location", "Ecuador")

	// Each level's stamp steps sideways so they do not overlap.
	placement := Placement{
		PageIndex: formInt(c, "page_index", 0),
		X:         formFloat(c, "x", float64(100+level*20)),
		Y:         formFloat(c, "y", 100),
		Width:     formFloat(c, "width", 150),
	}

	f, err := certFile.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	certBytes, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Sign(c.Request.Context(), SignRequest{
		DocumentID:   id,
		SignerLevel:  level,
		Certificate:  certBytes,
		CertFilename: certFile.Filename,
		Password:     password,
		Reason:       reason,
		Location:     location,
		Placement:    placement,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("firmado_nivel_%d_%s", level, result.Document.OriginalFilename)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", result.SignedPDF)
}

// respondError maps the workflow error taxonomy onto HTTP statuses without
// leaking internals beyond the engine detail callers need for diagnostics.
func respondError(c *gin.Context, err error) {
	var engineErr *signing.EngineError

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrOutOfOrderSigner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, certinfo.ErrCorruptArchiveOrWrongPassword),
		errors.Is(err, certinfo.ErrUnsupportedArchiveFormat),
		errors.Is(err, signing.ErrPageIndexOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &engineErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": engineErr.Error()})
	case errors.Is(err, storage.ErrStorageFailure):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func formInt(c *gin.Context, key string, fallback int) int {
	if v := c.PostForm(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func formFloat(c *gin.Context, key string, fallback float64) float64 {
	if v := c.PostForm(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
