package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
	"github.com/catalogsync/backend/internal/usecase"
)

const version = "1.0.0"

// SheetParser decodes an uploaded pricing sheet; filename selects the format
type SheetParser func(ctx context.Context, r io.Reader, filename string) ([]domain.PricingRow, error)

// Handler holds dependencies for HTTP handlers. Every endpoint is read-only.
type Handler struct {
	catalog    domain.CatalogStore
	table      *domain.RuleTable
	reconciler *usecase.Reconciler
	parseSheet SheetParser
	maxUpload  int64
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog domain.CatalogStore, table *domain.RuleTable, reconciler *usecase.Reconciler, parseSheet SheetParser, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		catalog:    catalog,
		table:      table,
		reconciler: reconciler,
		parseSheet: parseSheet,
		maxUpload:  maxUpload,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": "catalogsync",
		"version": version,
	}
	if h.table != nil {
		resp["ruleVersion"] = h.table.Version
	}
	c.JSON(http.StatusOK, resp)
}

// CatalogSummary returns per-placement counts of the current catalog
func (h *Handler) CatalogSummary(c *gin.Context) {
	products, ok := h.loadCatalog(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, usecase.Summarize(products))
}

type reclassifyRequest struct {
	Products []domain.Product `json:"products"`
}

// ReclassifyPreview runs the reclassifier over the catalog, or over the products in the
// request body, and returns the report without saving anything
func (h *Handler) ReclassifyPreview(c *gin.Context) {
	if h.table == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No rule table loaded"})
		return
	}

	var products []domain.Product
	if c.Request.ContentLength != 0 {
		var req reclassifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		products = req.Products
	} else {
		var ok bool
		if products, ok = h.loadCatalog(c); !ok {
			return
		}
	}

	out, report, err := usecase.Reclassify(products, h.table)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRuleTable) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reclassification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":   report,
		"products": out,
	})
}

// PricesPreview reconciles an uploaded pricing sheet against the catalog and returns the
// report without saving anything
func (h *Handler) PricesPreview(c *gin.Context) {
	log := logger.Component(c.Request.Context(), "http")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Pricing sheet is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "A pricing sheet must be uploaded in the \"file\" field"})
		return
	}
	defer file.Close()

	rows, err := h.parseSheet(c.Request.Context(), file, header.Filename)
	if err != nil {
		log.Warn().Err(err).Str("file", header.Filename).Msg("pricing sheet rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	products, ok := h.loadCatalog(c)
	if !ok {
		return
	}

	report, err := h.reconciler.Reconcile(c.Request.Context(), products, rows)
	if err != nil {
		log.Error().Err(err).Msg("reconcile preview failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Price reconciliation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":  report,
		"skipped": report.Skipped(),
	})
}

func (h *Handler) loadCatalog(c *gin.Context) ([]domain.Product, bool) {
	products, err := h.catalog.LoadAll(c.Request.Context())
	if err == nil {
		return products, true
	}

	logger.Component(c.Request.Context(), "http").Error().Err(err).Msg("catalog load failed")
	if errors.Is(err, domain.ErrShardMissing) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog is incomplete: " + err.Error()})
		return nil, false
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Catalog could not be loaded"})
	return nil, false
}
