package schedule

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/antigens", h.ListAntigens)
	api.GET("/antigens/:disease", h.GetAntigen)
	api.GET("/cvx", h.ListVaccineInfos)
	api.GET("/cvx/:code", h.GetVaccineInfo)
	api.POST("/admin/import", h.Import)
}

func (h *Handler) ListAntigens(c echo.Context) error {
	items, err := h.svc.ListAntigens(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetAntigen(c echo.Context) error {
	a, err := h.svc.GetAntigen(c.Request().Context(), c.Param("disease"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "antigen not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListVaccineInfos(c echo.Context) error {
	items, err := h.svc.ListVaccineInfos(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetVaccineInfo(c echo.Context) error {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cvx code")
	}
	v, err := h.svc.GetVaccineInfo(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cvx mapping not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, v)
}

type importRequest struct {
	ScheduleDir string `json:"schedule_dir"`
	CVXMapFile  string `json:"cvx_map_file"`
}

func (h *Handler) Import(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ScheduleDir == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "schedule_dir is required")
	}
	if err := h.svc.Import(c.Request().Context(), req.ScheduleDir, req.CVXMapFile); err != nil {
		if errors.Is(err, ErrParse) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
