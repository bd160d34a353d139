package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dimitrije/product-api/internal/metrics"
	"github.com/dimitrije/product-api/internal/middleware"
	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/dimitrije/product-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/rs/zerolog"
)

// ProductHandler serves the product routes. Real-time events are published
// by the service through its Notifier, not from here.
type ProductHandler struct {
	products ProductServiceInterface
	metrics  *metrics.Metrics
}

func NewProductHandler(products ProductServiceInterface, m *metrics.Metrics) *ProductHandler {
	return &ProductHandler{
		products: products,
		metrics:  m,
	}
}

func (h *ProductHandler) List(c *drift.Context) {
	const op = "list"
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		h.unauthorized(c, op)
		return
	}

	marker, err := freshnessMarker(c)
	if err != nil {
		h.outcome(c, op, http.StatusBadRequest)
		c.BadRequest("invalid Last-Modified header")
		return
	}

	res, err := h.products.List(c.Request.Context(), userID, marker)
	if err != nil {
		h.internalError(c, op, err)
		return
	}

	c.Response.Header().Set("Last-Modified", res.LastModified.UTC().Format(http.TimeFormat))
	c.Response.Header().Set("ETag", listETag(res.LastModified))
	if res.NotModified {
		h.notModified(c, op)
		return
	}

	response := make([]dto.ProductResponse, len(res.Products))
	for i := range res.Products {
		response[i] = toProductResponse(&res.Products[i])
	}

	h.outcome(c, op, http.StatusOK)
	_ = c.JSON(http.StatusOK, response)
}

func (h *ProductHandler) Get(c *drift.Context) {
	const op = "get /:id"
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		h.unauthorized(c, op)
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.serviceError(c, op, err)
		return
	}

	setProductHeaders(c, p)
	if inm := c.GetHeader("If-None-Match"); inm != "" {
		if v, err := parseVersion(inm); err == nil && v == p.Version {
			h.notModified(c, op)
			return
		}
	}

	h.outcome(c, op, http.StatusOK)
	_ = c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) Create(c *drift.Context) {
	const op = "create"
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		h.unauthorized(c, op)
		return
	}

	var req dto.ProductRequest
	if err := c.BindJSON(&req); err != nil {
		h.outcome(c, op, http.StatusBadRequest)
		c.BadRequest("invalid request body")
		return
	}

	h.create(c, op, toProductInput(req, req.ID), userID)
}

// Update replaces an existing product. A body without an id creates the
// product at the path id instead.
func (h *ProductHandler) Update(c *drift.Context) {
	const op = "update /:id"
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		h.unauthorized(c, op)
		return
	}

	id := c.Param("id")

	var req dto.ProductRequest
	if err := c.BindJSON(&req); err != nil {
		h.outcome(c, op, http.StatusBadRequest)
		c.BadRequest("invalid request body")
		return
	}

	if req.ID == "" {
		h.create(c, op, toProductInput(req, id), userID)
		return
	}
	if req.ID != id {
		h.outcome(c, op, http.StatusBadRequest)
		c.BadRequest("product id in body does not match the url")
		return
	}
	if req.Name == "" {
		h.outcome(c, op, http.StatusBadRequest)
		c.BadRequest(services.ErrNameRequired.Error())
		return
	}

	version := requestVersion(c, req)

	p, err := h.products.Update(c.Request.Context(), id, toProductInput(req, id), version, userID)
	if err != nil {
		var conflict *services.VersionConflictError
		switch {
		case errors.As(err, &conflict):
			h.outcome(c, op, http.StatusConflict)
			_ = c.JSON(http.StatusConflict, dto.VersionConflictResponse{
				Code:           "VERSION_CONFLICT",
				Message:        "product has been modified, update your copy first",
				CurrentVersion: conflict.Current,
			})
		case errors.Is(err, services.ErrProductNotFound):
			// the client still references a product that was deleted
			h.outcome(c, op, http.StatusMethodNotAllowed)
			_ = c.JSON(http.StatusMethodNotAllowed, dto.ErrorResponse{
				Code:    "PRODUCT_GONE",
				Message: "product no longer exists",
			})
		case errors.Is(err, services.ErrMissingVersion):
			h.outcome(c, op, http.StatusBadRequest)
			c.BadRequest("no version specified")
		default:
			h.serviceError(c, op, err)
		}
		return
	}

	setProductHeaders(c, p)
	h.outcome(c, op, http.StatusOK)
	_ = c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) Delete(c *drift.Context) {
	const op = "delete /:id"
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		h.unauthorized(c, op)
		return
	}

	id := c.Param("id")
	n, err := h.products.Delete(c.Request.Context(), id, userID)
	if err != nil {
		h.serviceError(c, op, err)
		return
	}

	zerolog.Ctx(c.Request.Context()).Debug().Str("product_id", id).Int64("removed", n).Msg("product delete")

	h.outcome(c, op, http.StatusNoContent)
	c.Response.WriteHeader(http.StatusNoContent)
	c.Abort()
}

func (h *ProductHandler) create(c *drift.Context, op string, in services.ProductInput, owner uuid.UUID) {
	p, err := h.products.Create(c.Request.Context(), in, owner)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNameRequired):
			h.outcome(c, op, http.StatusBadRequest)
			c.BadRequest(err.Error())
		case errors.Is(err, services.ErrProductExists):
			h.outcome(c, op, http.StatusConflict)
			_ = c.JSON(http.StatusConflict, dto.ErrorResponse{
				Code:    "PRODUCT_EXISTS",
				Message: fmt.Sprintf("product %q already exists", in.ID),
			})
		default:
			h.internalError(c, op, err)
		}
		return
	}

	setProductHeaders(c, p)
	h.outcome(c, op, http.StatusCreated)
	_ = c.JSON(http.StatusCreated, toProductResponse(p))
}

func (h *ProductHandler) serviceError(c *drift.Context, op string, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		h.outcome(c, op, http.StatusNotFound)
		c.NotFound("product not found")
	case errors.Is(err, services.ErrForbidden):
		h.outcome(c, op, http.StatusForbidden)
		c.Forbidden("product belongs to another user")
	case errors.Is(err, services.ErrNameRequired):
		h.outcome(c, op, http.StatusBadRequest)
		c.BadRequest(err.Error())
	default:
		h.internalError(c, op, err)
	}
}

func (h *ProductHandler) internalError(c *drift.Context, op string, err error) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("op", op).Msg("product operation failed")
	h.outcome(c, op, http.StatusInternalServerError)
	c.InternalServerError("internal error")
}

func (h *ProductHandler) unauthorized(c *drift.Context, op string) {
	h.outcome(c, op, http.StatusUnauthorized)
	c.Unauthorized("not authenticated")
}

func (h *ProductHandler) notModified(c *drift.Context, op string) {
	h.outcome(c, op, http.StatusNotModified)
	c.Response.WriteHeader(http.StatusNotModified)
	c.Abort()
}

// outcome logs one line per request in the form "update /:id - 409 Conflict"
// and counts it.
func (h *ProductHandler) outcome(c *drift.Context, op string, status int) {
	h.metrics.ObserveOperation(op, status)

	log := zerolog.Ctx(c.Request.Context())
	ev := log.Info()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Str("op", op).Int("status", status).Msgf("%s - %d %s", op, status, http.StatusText(status))
}

func setProductHeaders(c *drift.Context, p *models.Product) {
	c.Response.Header().Set("ETag", strconv.Itoa(p.Version))
	c.Response.Header().Set("Last-Modified", p.UpdatedAt.UTC().Format(http.TimeFormat))
}

func toProductResponse(p *models.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Amount:    p.Amount,
		Price:     p.Price,
		Data:      p.Data,
		Owner:     p.Owner,
		Version:   p.Version,
		UpdatedAt: p.UpdatedAt,
	}
}

func toProductInput(req dto.ProductRequest, id string) services.ProductInput {
	return services.ProductInput{
		ID:     id,
		Name:   req.Name,
		Amount: req.Amount,
		Price:  req.Price,
		Data:   req.Data,
	}
}

// listETag encodes the collection watermark at full precision. HTTP-dates
// drop the sub-second part, so only this tag lets a client prove it holds
// the current list.
func listETag(watermark time.Time) string {
	return strconv.FormatInt(watermark.UnixNano(), 10)
}

// freshnessMarker reads the client's collection timestamp from If-None-Match
// (a list ETag), then Last-Modified, then If-Modified-Since. A missing header
// yields nil. An If-None-Match that is not a list ETag is ignored.
func freshnessMarker(c *drift.Context) (*time.Time, error) {
	if inm := c.GetHeader("If-None-Match"); inm != "" {
		if n, err := strconv.ParseInt(trimETag(inm), 10, 64); err == nil && n > 0 {
			t := time.Unix(0, n).UTC()
			return &t, nil
		}
	}

	raw := c.GetHeader("Last-Modified")
	if raw == "" {
		raw = c.GetHeader("If-Modified-Since")
	}
	if raw == "" {
		return nil, nil
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := http.ParseTime(raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
	}
	return t.UTC(), nil
}

// requestVersion takes the client version from the ETag header, then
// If-Match, then the body. Headers that do not hold a positive version are
// skipped. Zero means none was supplied, which the service reports only after
// its existence and ownership checks.
func requestVersion(c *drift.Context, req dto.ProductRequest) int {
	for _, header := range []string{"ETag", "If-Match"} {
		if raw := c.GetHeader(header); raw != "" {
			if v, err := parseVersion(raw); err == nil && v > 0 {
				return v
			}
		}
	}
	return req.Version
}

func parseVersion(raw string) (int, error) {
	n, err := strconv.Atoi(trimETag(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return n, nil
}

func trimETag(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}
