package handler

import (
	"net/http"
	"strings"

	"cajapos/internal/apierror"
	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
)

const idempotencyHeader = "Idempotency-Key"

type EntregasHandler struct{ svc service.EntregaService }

func NewEntregasHandler(svc service.EntregaService) *EntregasHandler {
	return &EntregasHandler{svc: svc}
}

// RegistrarEntrega godoc
// @Summary      Registrar una entrega (pago)
// @Description  Registra un pago contra una venta o, con diferir=true, difiere el saldo.
// @Description  Un Idempotency-Key repetido devuelve la primera respuesta sin registrar otro pago.
// @Tags         entregas
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "Clave de idempotencia"
// @Param        body body dto.RegistrarEntregaRequest true "Entrega"
// @Success      201  {object} dto.RegistrarEntregaResponse
// @Failure      422  {object} apierror.OverpaymentError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/entregas [post]
func (h *EntregasHandler) RegistrarEntrega(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(idempotencyHeader))
	if len(key) > 128 {
		c.JSON(http.StatusBadRequest, apierror.New("Idempotency-Key demasiado larga"))
		return
	}
	var req dto.RegistrarEntregaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RegistrarEntrega(c.Request.Context(), key, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *EntregasHandler) ListarEntregas(c *gin.Context) {
	var filter dto.EntregaFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListarEntregas(c.Request.Context(), filter)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CorregirMonto rewrites a payment amount. Kept for older terminals; new
// clients delete and re-record instead.
func (h *EntregasHandler) CorregirMonto(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CorregirMontoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CorregirMonto(c.Request.Context(), id, req.Monto)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EntregasHandler) EliminarEntrega(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.EliminarEntrega(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
