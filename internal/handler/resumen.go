package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
)

type ResumenHandler struct{ svc service.ResumenService }

func NewResumenHandler(svc service.ResumenService) *ResumenHandler { return &ResumenHandler{svc: svc} }

// ResumenCuenta godoc
// @Summary      Resumen de cuenta de un negocio
// @Description  Ventas, entregas y notas de credito en orden cronologico con saldo acumulado.
// @Tags         resumen
// @Produce      json
// @Security     BearerAuth
// @Param        id      path  string true  "UUID del negocio"
// @Param        caja_id query string false "Caja"
// @Param        desde   query string false "Desde (YYYY-MM-DD)"
// @Param        hasta   query string false "Hasta (YYYY-MM-DD)"
// @Success      200 {object} dto.ResumenCuentaResponse
// @Router       /v1/resumen-cuenta/negocio/{id} [get]
func (h *ResumenHandler) ResumenCuenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var q dto.ResumenQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.ResumenCuenta(c.Request.Context(), id, q)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
