package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResumenService builds the running-account statement of a business.
// Read-only: it never mutates sales, payments or credit notes.
type ResumenService interface {
	ResumenCuenta(ctx context.Context, negocioID uuid.UUID, q dto.ResumenQuery) (*dto.ResumenCuentaResponse, error)
}

type resumenService struct {
	negocios repository.NegocioRepository
	ventas   repository.VentaRepository
	entregas repository.EntregaRepository
	jornada  *Jornada
}

func NewResumenService(
	negocios repository.NegocioRepository,
	ventas repository.VentaRepository,
	entregas repository.EntregaRepository,
	jornada *Jornada,
) ResumenService {
	return &resumenService{negocios: negocios, ventas: ventas, entregas: entregas, jornada: jornada}
}

type movimiento struct {
	fecha time.Time
	dto.MovimientoCuenta
}

func (s *resumenService) ResumenCuenta(ctx context.Context, negocioID uuid.UUID, q dto.ResumenQuery) (*dto.ResumenCuentaResponse, error) {
	cq := repository.CuentaQuery{NegocioID: negocioID}
	var err error
	if cq.CajaID, err = parseUUIDOpcional("caja_id", &q.CajaID); err != nil {
		return nil, err
	}
	if cq.Periodo, err = s.jornada.Rango(q.Desde, q.Hasta); err != nil {
		return nil, err
	}
	if _, err := s.negocios.FindByID(ctx, negocioID); err != nil {
		return nil, traducir("buscar negocio", "negocio", negocioID.String(), err)
	}

	ventas, err := leer(ctx, "ventas del negocio", func() ([]model.Venta, error) {
		return s.ventas.ListByNegocio(ctx, cq)
	})
	if err != nil {
		return nil, err
	}
	entregas, err := leer(ctx, "entregas del negocio", func() ([]model.Entrega, error) {
		return s.entregas.ListByNegocio(ctx, cq)
	})
	if err != nil {
		return nil, err
	}
	notas, err := leer(ctx, "notas de credito del negocio", func() ([]model.NotaCredito, error) {
		return s.negocios.ListNotasCredito(ctx, cq)
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.ResumenCuentaResponse{
		NegocioID:         negocioID.String(),
		Desde:             q.Desde,
		Hasta:             q.Hasta,
		TotalVentas:       decimal.Zero,
		TotalEntregas:     decimal.Zero,
		TotalNotasCredito: decimal.Zero,
	}

	movs := make([]movimiento, 0, len(ventas)+len(entregas)+len(notas))
	for _, v := range ventas {
		resp.TotalVentas = resp.TotalVentas.Add(v.Total)
		movs = append(movs, movimiento{v.CreatedAt, dto.MovimientoCuenta{
			Tipo: "venta", ID: v.ID.String(), Numero: v.Numero, Detalle: string(v.EstadoPago), Monto: v.Total,
		}})
	}
	for _, e := range entregas {
		resp.TotalEntregas = resp.TotalEntregas.Add(e.Monto)
		movs = append(movs, movimiento{e.CreatedAt, dto.MovimientoCuenta{
			Tipo: "entrega", ID: e.ID.String(), Numero: e.Numero, Detalle: e.MetodoPago.String(), Monto: e.Monto,
		}})
	}
	for _, n := range notas {
		resp.TotalNotasCredito = resp.TotalNotasCredito.Add(n.Monto)
		movs = append(movs, movimiento{n.CreatedAt, dto.MovimientoCuenta{
			Tipo: "nota_credito", ID: n.ID.String(), Detalle: n.Motivo, Monto: n.Monto,
		}})
	}
	slices.SortStableFunc(movs, func(a, b movimiento) int { return cmp.Compare(a.fecha.UnixNano(), b.fecha.UnixNano()) })

	saldo := decimal.Zero
	resp.Movimientos = make([]dto.MovimientoCuenta, 0, len(movs))
	for _, m := range movs {
		if m.Tipo == "venta" {
			saldo = saldo.Add(m.Monto)
		} else {
			saldo = saldo.Sub(m.Monto)
		}
		m.Saldo = saldo
		m.Fecha = m.fecha.In(s.jornada.Location()).Format(time.RFC3339)
		resp.Movimientos = append(resp.Movimientos, m.MovimientoCuenta)
	}
	resp.SaldoFinal = saldo
	return resp, nil
}
