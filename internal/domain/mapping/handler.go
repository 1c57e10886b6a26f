package mapping

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fhirbridge/fhirbridge/internal/platform/auth"
	"github.com/fhirbridge/fhirbridge/internal/platform/mapper"
	"github.com/fhirbridge/fhirbridge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	convert := api.Group("", auth.RequireRole("admin", "integration"))
	convert.POST("/convert/:mappingId", h.Convert)
	convert.POST("/convert", h.ConvertBySourceType)
	convert.POST("/translate/:tableId", h.Translate)

	read := api.Group("", auth.RequireRole("admin", "integration", "viewer"))
	read.GET("/mappings", h.ListMappings)
	read.GET("/mappings/:id", h.GetMapping)
	read.GET("/lookup-tables", h.ListLookups)
	read.GET("/lookup-tables/:id", h.GetLookup)
	read.GET("/lookup-tables/:id/translate", h.TranslateQuery)
	read.GET("/registry/stats", h.Stats)
	read.GET("/registry/security-findings", h.SecurityFindings)

	write := api.Group("", auth.RequireRole("admin"))
	write.POST("/mappings", h.CreateMapping)
	write.PUT("/mappings/:id", h.UpdateMapping)
	write.DELETE("/mappings/:id", h.DeleteMapping)
	write.POST("/mappings/validate", h.ValidateMapping)
	write.POST("/lookup-tables", h.CreateLookup)
	write.PUT("/lookup-tables/:id", h.UpdateLookup)
	write.DELETE("/lookup-tables/:id", h.DeleteLookup)
	write.POST("/registry/reload", h.Reload)
}

// -- Conversion --

func (h *Handler) Convert(c echo.Context) error {
	req, err := bindConvertRequest(c)
	if err != nil {
		return err
	}
	mappingID := c.Param("mappingId")
	direction := requestedDirection(c, mapper.JSONToFHIR)
	withTrace := c.QueryParam("trace") == "true"

	resp, err := h.svc.Convert(c.Request().Context(), mappingID, direction, req, withTrace)
	if err != nil {
		return convertError(c, resp, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ConvertBySourceType(c echo.Context) error {
	req, err := bindConvertRequest(c)
	if err != nil {
		return err
	}
	sourceType := c.QueryParam("sourceType")
	if sourceType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sourceType query parameter required")
	}
	direction := requestedDirection(c, mapper.JSONToFHIR)
	withTrace := c.QueryParam("trace") == "true"

	engine, err := h.svc.currentEngine()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	m := engine.Registry().FindMapping(sourceType, direction)
	if m == nil {
		return echo.NewHTTPError(http.StatusNotFound,
			"no mapping for source type "+sourceType)
	}

	resp, err := h.svc.Convert(c.Request().Context(), m.ID, direction, req, withTrace)
	if err != nil {
		return convertError(c, resp, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Translate(c echo.Context) error {
	var req TranslateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code required")
	}

	result, err := h.svc.Translate(c.Request().Context(), c.Param("tableId"), req.Code, req.Direction)
	if err != nil {
		var miss *mapper.LookupMissError
		if errors.As(err, &miss) {
			return echo.NewHTTPError(http.StatusNotFound, miss.Error())
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// TranslateQuery is the GET form of Translate: the code comes from the
// query string and reverse=true selects the reverse direction.
func (h *Handler) TranslateQuery(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code query parameter required")
	}
	direction := mapper.JSONToFHIR
	if c.QueryParam("reverse") == "true" {
		direction = mapper.FHIRToJSON
	}

	result, err := h.svc.Translate(c.Request().Context(), c.Param("id"), code, direction)
	if err != nil {
		var miss *mapper.LookupMissError
		if errors.As(err, &miss) {
			return echo.NewHTTPError(http.StatusNotFound, miss.Error())
		}
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func bindConvertRequest(c echo.Context) (*ConvertRequest, error) {
	var req ConvertRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Source == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "source document required")
	}
	return &req, nil
}

func requestedDirection(c echo.Context, fallback mapper.Direction) mapper.Direction {
	if d := c.QueryParam("direction"); d != "" {
		return mapper.Direction(d)
	}
	return fallback
}

// convertError maps engine failures onto HTTP statuses, keeping the trace
// in the body so callers can diagnose failed conversions.
func convertError(c echo.Context, resp *ConvertResponse, err error) error {
	status := http.StatusUnprocessableEntity
	var dirErr *mapper.DirectionError
	switch {
	case errors.As(err, &dirErr):
		status = http.StatusBadRequest
	case resp == nil || resp.Target == nil && resp.Trace == nil:
		status = http.StatusNotFound
	}

	body := map[string]interface{}{"error": err.Error()}
	if resp != nil && resp.Trace != nil {
		body["trace"] = resp.Trace
	}
	return c.JSON(status, body)
}

// -- Mapping definitions --

func (h *Handler) ListMappings(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMappings(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetMapping(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	def, err := h.svc.GetMapping(c.Request().Context(), id)
	if err != nil {
		return notFoundOrInternal(err)
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) CreateMapping(c echo.Context) error {
	var doc mapper.Mapping
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	def, err := h.svc.CreateMapping(c.Request().Context(), &doc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, def)
}

func (h *Handler) UpdateMapping(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		mapper.Mapping
		Enabled *bool `json:"enabled"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	def, err := h.svc.UpdateMapping(c.Request().Context(), id, &body.Mapping, enabled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) DeleteMapping(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteMapping(c.Request().Context(), id); err != nil {
		return notFoundOrInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ValidateMapping(c echo.Context) error {
	var doc mapper.Mapping
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, h.svc.Validate(c.Request().Context(), &doc))
}

// -- Lookup tables --

func (h *Handler) ListLookups(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListLookups(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetLookup(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	def, err := h.svc.GetLookup(c.Request().Context(), id)
	if err != nil {
		return notFoundOrInternal(err)
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) CreateLookup(c echo.Context) error {
	var doc mapper.LookupTable
	if err := c.Bind(&doc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	def, err := h.svc.CreateLookup(c.Request().Context(), &doc)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, def)
}

func (h *Handler) UpdateLookup(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		mapper.LookupTable
		Enabled *bool `json:"enabled"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	def, err := h.svc.UpdateLookup(c.Request().Context(), id, &body.LookupTable, enabled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "lookup table not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) DeleteLookup(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteLookup(c.Request().Context(), id); err != nil {
		return notFoundOrInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Registry --

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) SecurityFindings(c echo.Context) error {
	issues := h.svc.SecurityIssues()
	if issues == nil {
		issues = []mapper.SecurityIssue{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":    len(issues),
		"findings": issues,
	})
}

func (h *Handler) Reload(c echo.Context) error {
	if err := h.svc.Reload(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	stats, _ := h.svc.Stats()
	return c.JSON(http.StatusOK, stats)
}

func notFoundOrInternal(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
