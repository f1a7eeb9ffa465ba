package handler

import (
	"net/http"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CierresHandler struct{ svc service.CierreService }

func NewCierresHandler(svc service.CierreService) *CierresHandler { return &CierresHandler{svc: svc} }

// CrearCierre godoc
// @Summary      Cerrar la caja del dia
// @Description  Cierra la caja con el monto contado; si existe un cierre pendiente del dia lo transiciona a cerrado.
// @Tags         cierres
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CrearCierreRequest true "Caja y monto contado"
// @Success      201  {object} dto.CierreResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/cierres [post]
func (h *CierresHandler) CrearCierre(c *gin.Context) {
	var req dto.CrearCierreRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cajaID, err := uuid.Parse(req.CajaID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New("caja_id invalido"))
		return
	}
	op := operador(c)
	if op == nil {
		c.JSON(http.StatusForbidden, apierror.New("Operador no identificado"))
		return
	}
	resp, err := h.svc.CrearCierre(c.Request.Context(), cajaID, req.TotalContado, op)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CierresHandler) CerrarPendiente(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CerrarCierreRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.TotalContado != nil && req.TotalContado.IsNegative() {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"TotalContado": "min"}))
		return
	}
	op := operador(c)
	if op == nil {
		c.JSON(http.StatusForbidden, apierror.New("Operador no identificado"))
		return
	}
	resp, err := h.svc.CerrarCierrePendiente(c.Request.Context(), id, *op, req.TotalContado)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CierresHandler) ListarCierres(c *gin.Context) {
	var filter dto.CierreFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarCierres(c.Request.Context(), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CierreAutomatico runs the pending-closing sweep on demand. Accepts an
// optional ?fecha=YYYY-MM-DD, today by default.
func (h *CierresHandler) CierreAutomatico(c *gin.Context) {
	var q dto.TotalesQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.CierreAutomatico(c.Request.Context(), q.Fecha)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
