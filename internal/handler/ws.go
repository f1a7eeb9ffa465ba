package handler

import (
	"net/http"

	"cajapos/internal/apierror"
	"cajapos/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RealtimeHandler upgrades terminals to the register event channel.
type RealtimeHandler struct{ transporte *realtime.Transporte }

func NewRealtimeHandler(t *realtime.Transporte) *RealtimeHandler {
	return &RealtimeHandler{transporte: t}
}

// Conectar serves GET /v1/ws?caja_id=. The first message is the day's
// initial-sales snapshot.
func (h *RealtimeHandler) Conectar(c *gin.Context) {
	cajaID, err := uuid.Parse(c.Query("caja_id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New("caja_id requerido"))
		return
	}
	if err := h.transporte.ServeWS(c.Writer, c.Request, cajaID); err != nil {
		responderError(c, err)
	}
}
