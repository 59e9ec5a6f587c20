package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/truthgauge/internal/model"
	"github.com/ppiankov/truthgauge/internal/store"
)

// AnalyzeRequest is the JSON body for text and URL submissions
type AnalyzeRequest struct {
	Content string `json:"content"`
	URL     string `json:"url"`
}

// ErrorResponse is returned for every failure
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ListResponse wraps a page of analyses
type ListResponse struct {
	Analyses []model.Analysis `json:"analyses"`
	Count    int              `json:"count"`
}

// HealthResponse reports liveness. Model is set only when the caller
// asks for a backend check with ?check=model.
type HealthResponse struct {
	Status      string `json:"status"`
	Persistence bool   `json:"persistence"`
	Model       string `json:"model,omitempty"`
}

// modelCheckTimeout bounds the backend round trip made by /health?check=model
const modelCheckTimeout = 10 * time.Second

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Persistence: s.reader != nil}

	checker, ok := s.analyzer.(ModelChecker)
	if c.Query("check") != "model" || !ok {
		c.JSON(http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), modelCheckTimeout)
	defer cancel()
	if !checker.ModelAvailable(ctx) {
		resp.Status = "degraded"
		resp.Model = "unavailable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.Model = "available"
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreate(c *gin.Context) {
	input, err := s.bindInput(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	analysis, err := s.analyzer.Analyze(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, analysis)
}

// bindInput builds a RawInput from either a multipart upload or a JSON body
func (s *Server) bindInput(c *gin.Context) (model.RawInput, error) {
	contentType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))

	if contentType == "multipart/form-data" {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return model.RawInput{}, fmt.Errorf("multipart upload requires a file field: %w", err)
		}
		f, err := fileHeader.Open()
		if err != nil {
			return model.RawInput{}, fmt.Errorf("open upload: %w", err)
		}
		defer func() { _ = f.Close() }()

		data, err := io.ReadAll(f)
		if err != nil {
			return model.RawInput{}, fmt.Errorf("read upload: %w", err)
		}
		return model.FileInput(data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename), nil
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return model.RawInput{}, fmt.Errorf("invalid request body: %w", err)
	}

	switch {
	case req.Content != "" && req.URL != "":
		return model.RawInput{}, errors.New("provide either content or url, not both")
	case req.URL != "":
		return model.URLInput(req.URL), nil
	case req.Content != "":
		return model.TextInput(req.Content), nil
	default:
		return model.RawInput{}, errors.New("content or url is required")
	}
}

func (s *Server) handleGet(c *gin.Context) {
	if s.reader == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "persistence is disabled"})
		return
	}

	analysis, err := s.reader.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "analysis not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleList(c *gin.Context) {
	if s.reader == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "persistence is disabled"})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	analyses, err := s.reader.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Analyses: analyses, Count: len(analyses)})
}

// StatusFor maps an error kind to an HTTP status
func StatusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case model.KindExtractionFailed:
		return http.StatusUnprocessableEntity
	case model.KindEvidenceServiceUnavailable, model.KindModelUnavailable:
		return http.StatusServiceUnavailable
	case model.KindUnparsableModelOutput, model.KindInvalidConfidence:
		return http.StatusBadGateway
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind, ok := model.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(StatusFor(kind), ErrorResponse{Error: err.Error(), Kind: string(kind)})
}
