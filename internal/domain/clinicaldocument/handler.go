package clinicaldocument

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
	g := api.Group("/ClinicalDocument", auth.RequireSubjectAccess(auth.HDIDFromRequest))
	g.GET("/:hdid", h.GetDocuments)
	g.GET("/:hdid/file/:fileId", h.GetFile)
}

func (h *Handler) GetDocuments(c echo.Context) error {
	docs, err := h.svc.Documents(c.Request().Context(), c.Param("hdid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, phsa.List(docs, 0))
}

func (h *Handler) GetFile(c echo.Context) error {
	media, err := h.svc.File(c.Request().Context(), c.Param("hdid"), c.Param("fileId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, phsa.Single(media))
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrMissingHDID), errors.Is(err, ErrMissingFileID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoPatient):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}
