package handler

import (
	"net/http"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
)

// CajasHandler serves registers, their day totals and closings.
type CajasHandler struct{ svc service.CierreService }

func NewCajasHandler(svc service.CierreService) *CajasHandler { return &CajasHandler{svc: svc} }

func (h *CajasHandler) ListarCajas(c *gin.Context) {
	resp, err := h.svc.ListarCajas(c.Request.Context())
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TotalSistema godoc
// @Summary      Total del sistema de una caja
// @Description  modo=entregas suma los pagos del dia (por metodo); modo=ventas_pagadas suma las ventas pagadas.
// @Tags         cajas
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "UUID de la caja"
// @Param        fecha query string false "Dia (YYYY-MM-DD), hoy por defecto"
// @Param        modo  query string false "entregas | ventas_pagadas"
// @Success      200 {object} dto.TotalSistemaResponse
// @Router       /v1/cajas/{id}/totales [get]
func (h *CajasHandler) TotalSistema(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var q dto.TotalesQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.CalcularTotalSistema(c.Request.Context(), id, q.Fecha, q.Modo)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CajasHandler) TotalesDelDia(c *gin.Context) {
	var q dto.TotalesQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.TotalesDelDia(c.Request.Context(), q.Fecha, q.Modo)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
