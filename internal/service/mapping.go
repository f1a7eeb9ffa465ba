package service

import (
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func ventaToResponse(v *model.Venta) dto.VentaResponse {
	detalles := make([]dto.DetalleVentaResponse, 0, len(v.Detalles))
	for _, d := range v.Detalles {
		detalles = append(detalles, dto.DetalleVentaResponse{
			ProductoID:     d.ProductoID.String(),
			PrecioUnitario: d.PrecioUnitario,
			Cantidad:       d.Cantidad,
			Subtotal:       d.Subtotal,
		})
	}
	return dto.VentaResponse{
		ID:             v.ID.String(),
		Numero:         v.Numero,
		CajaID:         v.CajaID.String(),
		NegocioID:      v.NegocioID.String(),
		ClienteID:      uuidPtrString(v.ClienteID),
		Detalles:       detalles,
		Total:          v.Total,
		TotalPagado:    v.TotalPagado,
		RestoPendiente: v.RestoPendiente,
		EstadoPago:     string(v.EstadoPago),
		CreatedAt:      v.CreatedAt.Format(time.RFC3339),
	}
}

func entregaToResponse(e *model.Entrega) dto.EntregaResponse {
	return dto.EntregaResponse{
		ID:         e.ID.String(),
		Numero:     e.Numero,
		VentaID:    uuidPtrString(e.VentaID),
		CajaID:     e.CajaID.String(),
		NegocioID:  e.NegocioID.String(),
		MetodoPago: int(e.MetodoPago),
		Metodo:     e.MetodoPago.String(),
		Monto:      e.Monto,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func cierreToResponse(c *model.CierreCaja) dto.CierreResponse {
	return dto.CierreResponse{
		ID:           c.ID.String(),
		CajaID:       c.CajaID.String(),
		UsuarioID:    uuidPtrString(c.UsuarioID),
		FechaDia:     c.FechaDia,
		TotalSistema: c.TotalSistema,
		TotalContado: c.TotalContado,
		Desvio: dto.DesvioResponse{
			Monto:         c.Diferencia,
			Porcentaje:    porcentajeDesvio(c.Diferencia, c.TotalSistema),
			Clasificacion: c.ClasificacionDesvio,
		},
		TotalCuentaCorriente: c.TotalCuentaCorriente,
		TotalDiferido:        c.TotalDiferido,
		Estado:               c.Estado,
		Sello:                c.Sello,
		SelloValido:          VerificarSello(c),
		Fecha:                c.Fecha.Format(time.RFC3339),
	}
}

func montosToResponse(m map[model.MetodoPago]decimal.Decimal) dto.MontosPorMetodo {
	return dto.MontosPorMetodo{
		Efectivo:      m[model.MetodoEfectivo],
		Debito:        m[model.MetodoDebito],
		Credito:       m[model.MetodoCredito],
		Transferencia: m[model.MetodoTransferencia],
		QR:            m[model.MetodoQR],
	}
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseUUIDOpcional parses an optional id; nil or empty gives nil.
func parseUUIDOpcional(campo string, s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := parseUUID(campo, *s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
