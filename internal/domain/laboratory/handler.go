package laboratory

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/auth"
)

type Handler struct {
	svc       *Service
	fetchSize int
}

func NewHandler(svc *Service, fetchSize int) *Handler {
	return &Handler{svc: svc, fetchSize: fetchSize}
}

// RegisterRoutes mounts the laboratory reads on api (the /v1/api group).
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/Laboratory", auth.RequireSubjectAccess(auth.HDIDFromRequest))
	g.GET("/Covid19Orders", h.GetCovid19Orders)
	g.GET("/LaboratoryOrders", h.GetLaboratoryOrders)
	g.GET("/:reportId/Report", h.GetReport)
}

func (h *Handler) GetCovid19Orders(c echo.Context) error {
	result, err := h.svc.Covid19Orders(c.Request().Context(), c.QueryParam("hdid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, phsa.RequestResult[Covid19OrderResult]{
		ResourcePayload:  result,
		TotalResultCount: len(result.Covid19Orders),
		PageSize:         h.fetchSize,
	})
}

func (h *Handler) GetLaboratoryOrders(c echo.Context) error {
	result, err := h.svc.LaboratoryOrders(c.Request().Context(), c.QueryParam("hdid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, phsa.RequestResult[LaboratoryOrderResult]{
		ResourcePayload:  result,
		TotalResultCount: len(result.LaboratoryOrders),
		PageSize:         h.fetchSize,
	})
}

func (h *Handler) GetReport(c echo.Context) error {
	isCovid19 := false
	if raw := c.QueryParam("isCovid19"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "isCovid19 must be true or false")
		}
		isCovid19 = v
	}
	report, err := h.svc.Report(c.Request().Context(), c.Param("reportId"), c.QueryParam("hdid"), isCovid19)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, phsa.Single(report))
}

// toHTTPError turns validation failures into 400s and a missing report into
// a 404. Downstream and token errors pass through to the error handler.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrMissingHDID), errors.Is(err, ErrMissingReportID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrReportNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrReportNotFound.Error()).SetInternal(err)
	}
	return err
}
