package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codepilot/assistant-api/internal/api/middleware"
	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// PreferencesHandler serves the browser's AI provider and theme choice.
type PreferencesHandler struct {
	switcher ports.ProviderSwitch
	catalog  ports.ProviderCatalog
}

func NewPreferencesHandler(switcher ports.ProviderSwitch, catalog ports.ProviderCatalog) *PreferencesHandler {
	return &PreferencesHandler{switcher: switcher, catalog: catalog}
}

// Get handles GET /v1/preferences.
//
// @Summary      Browser preferences
// @Tags         preferences
// @Produce      json
// @Success      200  {object}  preferencesResponse
// @Router       /v1/preferences [get]
func (h *PreferencesHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view(c))
}

// Update handles PUT /v1/preferences. Omitted fields are left unchanged.
//
// @Summary      Update browser preferences
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Param        body  body      preferencesRequest  true  "Provider and/or theme"
// @Success      200   {object}  preferencesResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/preferences [put]
func (h *PreferencesHandler) Update(c echo.Context) error {
	var req preferencesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	clientID := middleware.ClientIDFrom(c)

	if req.Provider != "" {
		if err := h.switcher.Set(ctx, clientID, domain.AIProvider(req.Provider)); err != nil {
			return err
		}
	}
	if req.Theme != "" {
		if err := h.switcher.SetTheme(ctx, clientID, domain.Theme(req.Theme)); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, h.view(c))
}

// Providers handles GET /v1/providers.
//
// @Summary      Available AI providers
// @Tags         preferences
// @Produce      json
// @Success      200  {object}  providersResponse
// @Router       /v1/providers [get]
func (h *PreferencesHandler) Providers(c echo.Context) error {
	return c.JSON(http.StatusOK, providersResponse{
		Current:   h.switcher.Get(c.Request().Context(), middleware.ClientIDFrom(c)),
		Providers: h.catalog.List(),
	})
}

func (h *PreferencesHandler) view(c echo.Context) preferencesResponse {
	p := h.switcher.Preferences(c.Request().Context(), middleware.ClientIDFrom(c))
	return preferencesResponse{Provider: p.Provider, Theme: p.Theme}
}
