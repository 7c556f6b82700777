package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labreview-api/pkg/alerts"
	"github.com/noah-isme/labreview-api/pkg/response"
)

// AlertHandler exposes the queued failure notifications.
type AlertHandler struct {
	alerts *alerts.Queue
}

func NewAlertHandler(queue *alerts.Queue) *AlertHandler {
	return &AlertHandler{alerts: queue}
}

// List godoc
// @Summary List queued alerts
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.alerts.List())
}

// Dismiss godoc
// @Summary Dismiss one alert by ID
// @Tags Alerts
// @Param id path string true "Alert ID"
// @Success 204
// @Router /alerts/{id} [delete]
func (h *AlertHandler) Dismiss(c *gin.Context) {
	h.alerts.Dismiss(c.Param("id"))
	response.NoContent(c)
}

// Clear godoc
// @Summary Dismiss every queued alert
// @Tags Alerts
// @Success 204
// @Router /alerts [delete]
func (h *AlertHandler) Clear(c *gin.Context) {
	h.alerts.Clear()
	response.NoContent(c)
}
