package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/consistency"
	"github.com/cognicore/ontoreason/pkg/ontoreason/enrich"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/query"
)

// statusFor maps an error to a response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, internalerr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, internalerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internalerr.ErrNotReady), errors.Is(err, internalerr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.gate.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleEnrich(c *gin.Context) {
	var req enrich.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ent, err := reasoner(c).Enrich(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ent)
}

// BatchRequest is the body of POST /enrich/batch.
type BatchRequest struct {
	Entities []enrich.Request `json:"entities" binding:"required"`
}

func (s *Server) handleEnrichBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if limit := s.cfg.MaxBatch; limit > 0 && len(req.Entities) > limit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("batch of %d exceeds limit %d", len(req.Entities), limit)})
		return
	}
	ents, err := reasoner(c).EnrichBatch(c.Request.Context(), req.Entities)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": ents, "count": len(ents)})
}

// QueryRequest is the body of POST /query. Select, Limit and Distinct
// apply on top of any SELECT/LIMIT clause in Query.
type QueryRequest struct {
	Query    string   `json:"query" binding:"required"`
	Select   []string `json:"select"`
	Limit    int      `json:"limit"`
	Distinct bool     `json:"distinct"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var opts []query.Option
	if len(req.Select) > 0 {
		opts = append(opts, query.Select(req.Select...))
	}
	if req.Limit > 0 {
		opts = append(opts, query.Limit(req.Limit))
	}
	if req.Distinct {
		opts = append(opts, query.Distinct())
	}

	rows, err := reasoner(c).Query(req.Query, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bindings": rows, "count": len(rows)})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, reasoner(c).OntologyStats())
}

func (s *Server) handleExport(c *gin.Context) {
	format, err := graph.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contentType := "text/turtle; charset=utf-8"
	if format == graph.FormatNTriples {
		contentType = "application/n-triples"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if err := reasoner(c).Export(c.Writer, format); err != nil {
		s.logger.Error("export failed", zap.Error(err))
	}
}

func (s *Server) handleConsistency(c *gin.Context) {
	var opts ontoreason.CheckOptions
	if raw := c.Query("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("recent must be a non-negative integer, got %q", raw)})
			return
		}
		opts.IncludeRecent = n
	}

	vs, err := reasoner(c).CheckConsistency(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	if vs == nil {
		vs = []consistency.Violation{}
	}
	c.JSON(http.StatusOK, gin.H{
		"violations_found": len(vs),
		"violations":       vs,
		"by_kind":          consistency.CountByKind(vs),
	})
}
