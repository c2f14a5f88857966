package encounter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bcgov/healthgateway-sub024/internal/domain/phsa"
	"github.com/bcgov/healthgateway-sub024/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/Encounter", auth.RequireSubjectAccess(auth.HDIDFromRequest))
	g.GET("/HospitalVisit/:hdid", h.GetHospitalVisits)
	g.GET("/:hdid", h.GetEncounters)
}

// GetEncounters answers with MSP visit history. The PHN comes from the
// caller's own token, so only the subject themself can read it.
func (h *Handler) GetEncounters(c echo.Context) error {
	hdid := c.Param("hdid")
	var phn string
	if p, ok := auth.PrincipalFrom(c.Request().Context()); ok && p.HDID == hdid {
		phn = p.PHN
	}
	encounters, err := h.svc.MspVisits(c.Request().Context(), hdid, phn, c.RealIP())
	switch {
	case errors.Is(err, ErrMissingHDID), errors.Is(err, ErrMissingPHN):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrMspVisitsUnavailable):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, phsa.List(encounters, 0))
}

func (h *Handler) GetHospitalVisits(c echo.Context) error {
	result, err := h.svc.HospitalVisits(c.Request().Context(), c.Param("hdid"))
	if errors.Is(err, ErrMissingHDID) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, phsa.RequestResult[HospitalVisitResult]{
		ResourcePayload:  result,
		TotalResultCount: len(result.HospitalVisits),
	})
}
