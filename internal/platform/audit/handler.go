package audit

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bcgov/healthgateway-sub024/pkg/pagination"
)

// Handler serves read access to the audit trail.
type Handler struct {
	store Store
}

// NewHandler creates a Handler over store. Query routes answer 501 when the
// store is write-only.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the audit routes on g behind guards.
func (h *Handler) RegisterRoutes(g *echo.Group, guards ...echo.MiddlewareFunc) {
	ag := g.Group("/Audit", guards...)
	ag.GET("/events", h.List)
	ag.GET("/events/:id", h.Get)
}

// List answers GET /events?actorId=|resource=&limit=&offset=.
func (h *Handler) List(c echo.Context) error {
	actor := c.QueryParam("actorId")
	resource := c.QueryParam("resource")
	if (actor == "") == (resource == "") {
		return echo.NewHTTPError(http.StatusBadRequest, "exactly one of actorId or resource is required")
	}

	q, err := AsQuerier(h.store)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	}

	p := pagination.FromContext(c)
	ctx := c.Request().Context()
	var events []Event
	if actor != "" {
		events, err = q.ListByActor(ctx, actor, p.Offset, p.Fetch())
	} else {
		events, err = q.ListByResource(ctx, resource, p.Offset, p.Fetch())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Window(events, p))
}

// Get answers GET /events/:id.
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	g, ok := h.store.(Getter)
	if !ok {
		return echo.NewHTTPError(http.StatusNotImplemented, ErrNotQueryable.Error())
	}
	ev, err := g.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "audit event not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ev)
}
