package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Devon-White/sitemap-resolver/internal/fetcher"
	"github.com/Devon-White/sitemap-resolver/internal/resolver"
	"github.com/Devon-White/sitemap-resolver/internal/sitemap"
	"github.com/Devon-White/sitemap-resolver/internal/writer"
)

// Resolver is satisfied by *resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, source string) (*resolver.Result, error)
}

type Handler struct {
	strict  Resolver
	partial Resolver
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler takes one resolver that aborts on the first failure and one
// that runs in partial-success mode; requests pick with ?partial=true.
func NewHandler(strict, partial Resolver) *Handler {
	return &Handler{strict: strict, partial: partial}
}

// Resolve handles GET /api/resolve?source=<url>[&partial=true].
func (h *Handler) Resolve(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "source query parameter is required"})
		return
	}
	if _, ok := fetcher.ParseURL(source); !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "source must be an absolute http(s) URL"})
		return
	}

	r := h.strict
	if partial, _ := strconv.ParseBool(c.Query("partial")); partial {
		r = h.partial
	}

	res, err := r.Resolve(c.Request.Context(), source)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Status(http.StatusOK)
	if err := writer.Write(c.Writer, "json", writer.NewReport(source, res, time.Now())); err != nil {
		_ = c.Error(err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fetcher.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, sitemap.ErrParse),
		errors.Is(err, resolver.ErrCycle),
		errors.Is(err, resolver.ErrMaxDepth):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fetcher.ErrFetch), errors.Is(err, fetcher.ErrNotFound):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
