package service

import (
	"context"
	"errors"

	"cajapos/internal/apperr"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// System total modes.
const (
	ModoEntregas      = "entregas"       // sum of payments attributed to the register
	ModoVentasPagadas = "ventas_pagadas" // sum of totals of the register's paid sales
)

type CierreService interface {
	CalcularTotalSistema(ctx context.Context, cajaID uuid.UUID, dia, modo string) (*dto.TotalSistemaResponse, error)
	TotalesDelDia(ctx context.Context, dia, modo string) (*dto.TotalesDiaResponse, error)
	ListarCajas(ctx context.Context) ([]dto.CajaResponse, error)
	// CrearCierre closes the register for today when operador is set, otherwise
	// it creates or refreshes the day's pending closing.
	CrearCierre(ctx context.Context, cajaID uuid.UUID, totalContado decimal.Decimal, operador *uuid.UUID) (*dto.CierreResponse, error)
	CerrarCierrePendiente(ctx context.Context, cierreID, operador uuid.UUID, totalContado *decimal.Decimal) (*dto.CierreResponse, error)
	ListarCierres(ctx context.Context, filter dto.CierreFilter) (*dto.CierreListResponse, error)
	// CierreAutomatico creates a pending closing for every register lacking any
	// closing for dia. Safe to run more than once per day.
	CierreAutomatico(ctx context.Context, dia string) (*dto.ReporteBarridoResponse, error)
}

type cierreService struct {
	repo     repository.CajaRepository
	ventas   repository.VentaRepository
	entregas repository.EntregaRepository
	jornada  *Jornada
	hooks    Hooks
}

func NewCierreService(
	repo repository.CajaRepository,
	ventas repository.VentaRepository,
	entregas repository.EntregaRepository,
	jornada *Jornada,
	hooks Hooks,
) CierreService {
	return &cierreService{repo: repo, ventas: ventas, entregas: entregas, jornada: jornada, hooks: hooks}
}

// ── Totales ───────────────────────────────────────────────────────────────────

func (s *cierreService) CalcularTotalSistema(ctx context.Context, cajaID uuid.UUID, dia, modo string) (*dto.TotalSistemaResponse, error) {
	modo, err := validarModo(modo)
	if err != nil {
		return nil, err
	}
	if dia == "" {
		dia = s.jornada.Hoy()
	}
	p, err := s.jornada.Periodo(dia)
	if err != nil {
		return nil, err
	}
	if _, err := s.buscarCaja(ctx, cajaID); err != nil {
		return nil, err
	}
	return s.totalSistema(ctx, cajaID, dia, p, modo)
}

// totalSistema is one read-only aggregate query, retried on infrastructure errors.
func (s *cierreService) totalSistema(ctx context.Context, cajaID uuid.UUID, dia string, p repository.Periodo, modo string) (*dto.TotalSistemaResponse, error) {
	resp := &dto.TotalSistemaResponse{CajaID: cajaID.String(), Fecha: dia, Modo: modo}
	switch modo {
	case ModoVentasPagadas:
		total, err := leer(ctx, "total ventas pagadas", func() (decimal.Decimal, error) {
			return s.ventas.SumPagadas(ctx, cajaID, p)
		})
		if err != nil {
			return nil, err
		}
		resp.Total = total
	default:
		sums, err := leer(ctx, "total entregas", func() (map[model.MetodoPago]decimal.Decimal, error) {
			return s.entregas.SumPorMetodo(ctx, cajaID, p)
		})
		if err != nil {
			return nil, err
		}
		resp.PorMetodo = montosToResponse(sums)
		resp.Total = decimal.Zero
		for _, m := range model.MetodosPago {
			resp.Total = resp.Total.Add(sums[m])
		}
	}
	return resp, nil
}

func (s *cierreService) TotalesDelDia(ctx context.Context, dia, modo string) (*dto.TotalesDiaResponse, error) {
	modo, err := validarModo(modo)
	if err != nil {
		return nil, err
	}
	if dia == "" {
		dia = s.jornada.Hoy()
	}
	p, err := s.jornada.Periodo(dia)
	if err != nil {
		return nil, err
	}
	cajas, err := leer(ctx, "listar cajas", s.listCajas(ctx))
	if err != nil {
		return nil, err
	}

	resp := &dto.TotalesDiaResponse{Fecha: dia, Modo: modo, Cajas: make([]dto.TotalSistemaResponse, 0, len(cajas)), Total: decimal.Zero}
	for _, c := range cajas {
		t, err := s.totalSistema(ctx, c.ID, dia, p, modo)
		if err != nil {
			return nil, err
		}
		resp.Cajas = append(resp.Cajas, *t)
		resp.Total = resp.Total.Add(t.Total)
	}
	return resp, nil
}

func (s *cierreService) ListarCajas(ctx context.Context) ([]dto.CajaResponse, error) {
	p, err := s.jornada.Periodo("")
	if err != nil {
		return nil, err
	}
	cajas, err := leer(ctx, "listar cajas", s.listCajas(ctx))
	if err != nil {
		return nil, err
	}
	totales, err := leer(ctx, "total ventas pagadas por caja", func() (map[uuid.UUID]decimal.Decimal, error) {
		return s.ventas.SumPagadasPorCaja(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	out := make([]dto.CajaResponse, 0, len(cajas))
	for _, c := range cajas {
		out = append(out, dto.CajaResponse{ID: c.ID.String(), Nombre: c.Nombre, TotalDia: totales[c.ID]})
	}
	return out, nil
}

// ── CrearCierre ───────────────────────────────────────────────────────────────
// A pendiente row means "nobody has counted yet", it never blocks the operator:
// an explicit close transitions that same row instead of adding a second one.

func (s *cierreService) CrearCierre(ctx context.Context, cajaID uuid.UUID, totalContado decimal.Decimal, operador *uuid.UUID) (*dto.CierreResponse, error) {
	if totalContado.IsNegative() {
		return nil, apperr.Validation("el total contado no puede ser negativo")
	}
	if err := centavos("total_contado", totalContado); err != nil {
		return nil, err
	}
	if _, err := s.buscarCaja(ctx, cajaID); err != nil {
		return nil, err
	}
	dia := s.jornada.Hoy()
	montos, err := s.montosDelDia(ctx, cajaID, dia)
	if err != nil {
		return nil, err
	}

	var cierre *model.CierreCaja
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		cerrado, err := s.cierreDelDia(ctx, tx, cajaID, dia, model.CierreCerrado)
		if err != nil {
			return err
		}
		if cerrado != nil {
			return apperr.InvalidState("la caja ya fue cerrada el %s", dia)
		}
		pendiente, err := s.cierreDelDia(ctx, tx, cajaID, dia, model.CierrePendiente)
		if err != nil {
			return err
		}

		if pendiente != nil {
			if operador != nil {
				pendiente.Estado = model.CierreCerrado
				pendiente.UsuarioID = operador
			}
			s.liquidar(pendiente, montos, totalContado)
			cierre = pendiente
			return s.repo.UpdateCierre(ctx, tx, pendiente)
		}

		c := &model.CierreCaja{ID: uuid.New(), CajaID: cajaID, FechaDia: dia, Estado: model.CierrePendiente}
		if operador != nil {
			c.Estado = model.CierreCerrado
			c.UsuarioID = operador
		}
		s.liquidar(c, montos, totalContado)
		if c.Estado == model.CierreCerrado {
			cierre = c
			return s.repo.CreateCierre(ctx, tx, c)
		}
		creado, err := s.repo.CreateCierrePendiente(ctx, tx, c)
		if err != nil {
			return err
		}
		if !creado {
			// a concurrent sweep inserted the pending row first
			existente, err := s.repo.FindCierreDelDia(ctx, tx, cajaID, dia, model.CierrePendiente)
			if err != nil {
				return err
			}
			s.liquidar(existente, montos, totalContado)
			c = existente
			if err := s.repo.UpdateCierre(ctx, tx, c); err != nil {
				return err
			}
		}
		cierre = c
		return nil
	})
	if txErr != nil {
		return nil, s.errorCierre("crear cierre", txErr)
	}

	s.hooks.disparar(ctx, Mutacion{CajaID: cajaID, Caches: []string{CacheCierres}})
	log.Info().
		Str("caja", cajaID.String()).
		Str("estado", cierre.Estado).
		Str("diferencia", cierre.Diferencia.StringFixed(2)).
		Str("clasificacion", cierre.ClasificacionDesvio).
		Msg("cierre de caja registrado")
	resp := cierreToResponse(cierre)
	return &resp, nil
}

// ── CerrarCierrePendiente ─────────────────────────────────────────────────────

func (s *cierreService) CerrarCierrePendiente(ctx context.Context, cierreID, operador uuid.UUID, totalContado *decimal.Decimal) (*dto.CierreResponse, error) {
	if totalContado != nil {
		if totalContado.IsNegative() {
			return nil, apperr.Validation("el total contado no puede ser negativo")
		}
		if err := centavos("total_contado", *totalContado); err != nil {
			return nil, err
		}
	}
	previo, err := s.repo.FindCierre(ctx, cierreID)
	if err != nil {
		return nil, traducir("buscar cierre", "cierre", cierreID.String(), err)
	}
	if previo.Estado == model.CierreCerrado {
		return nil, apperr.InvalidState("el cierre %s ya está cerrado", cierreID)
	}
	montos, err := s.montosDelDia(ctx, previo.CajaID, previo.FechaDia)
	if err != nil {
		return nil, err
	}

	var cierre *model.CierreCaja
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		c, err := s.repo.FindCierreForUpdate(ctx, tx, cierreID)
		if err != nil {
			return traducir("buscar cierre", "cierre", cierreID.String(), err)
		}
		if c.Estado == model.CierreCerrado {
			return apperr.InvalidState("el cierre %s ya está cerrado", cierreID)
		}
		contado := c.TotalContado
		if totalContado != nil {
			contado = *totalContado
		}
		c.Estado = model.CierreCerrado
		c.UsuarioID = &operador
		s.liquidar(c, montos, contado)
		cierre = c
		return s.repo.UpdateCierre(ctx, tx, c)
	})
	if txErr != nil {
		return nil, s.errorCierre("cerrar cierre", txErr)
	}

	s.hooks.disparar(ctx, Mutacion{CajaID: cierre.CajaID, Caches: []string{CacheCierres}})
	resp := cierreToResponse(cierre)
	return &resp, nil
}

// ── ListarCierres ─────────────────────────────────────────────────────────────

func (s *cierreService) ListarCierres(ctx context.Context, filter dto.CierreFilter) (*dto.CierreListResponse, error) {
	q := repository.CierreQuery{
		Estado:   filter.Estado,
		DesdeDia: filter.Desde,
		HastaDia: filter.Hasta,
		Offset:   (filter.Page - 1) * filter.Limit,
		Limit:    filter.Limit,
	}
	var err error
	if q.CajaID, err = parseUUIDOpcional("caja_id", &filter.CajaID); err != nil {
		return nil, err
	}
	type pagina struct {
		cierres []model.CierreCaja
		total   int64
	}
	res, err := leer(ctx, "listar cierres", func() (pagina, error) {
		cierres, total, err := s.repo.ListCierres(ctx, q)
		return pagina{cierres, total}, err
	})
	if err != nil {
		return nil, err
	}
	resp := &dto.CierreListResponse{Data: make([]dto.CierreResponse, 0, len(res.cierres)), Total: res.total, Page: filter.Page, Limit: filter.Limit}
	for i := range res.cierres {
		resp.Data = append(resp.Data, cierreToResponse(&res.cierres[i]))
	}
	return resp, nil
}

// ── CierreAutomatico ──────────────────────────────────────────────────────────
// One failing register never aborts the sweep for the others; failures are
// collected in the report.

func (s *cierreService) CierreAutomatico(ctx context.Context, dia string) (*dto.ReporteBarridoResponse, error) {
	if dia == "" {
		dia = s.jornada.Hoy()
	}
	if _, err := s.jornada.Periodo(dia); err != nil {
		return nil, err
	}
	cajas, err := leer(ctx, "listar cajas", s.listCajas(ctx))
	if err != nil {
		return nil, err
	}

	reporte := &dto.ReporteBarridoResponse{Fecha: dia, Creados: []string{}, Existentes: []string{}, Fallidos: []dto.FalloBarrido{}}
	for _, c := range cajas {
		creado, err := s.barrerCaja(ctx, c.ID, dia)
		switch {
		case err != nil:
			log.Error().Err(err).Str("caja", c.ID.String()).Str("fecha", dia).Msg("cierre automatico: fallo en caja")
			reporte.Fallidos = append(reporte.Fallidos, dto.FalloBarrido{CajaID: c.ID.String(), Error: err.Error()})
		case creado:
			reporte.Creados = append(reporte.Creados, c.ID.String())
		default:
			reporte.Existentes = append(reporte.Existentes, c.ID.String())
		}
	}

	if len(reporte.Creados) > 0 {
		s.hooks.disparar(ctx, Mutacion{Caches: []string{CacheCierres}})
	}
	log.Info().
		Str("fecha", dia).
		Int("creados", len(reporte.Creados)).
		Int("existentes", len(reporte.Existentes)).
		Int("fallidos", len(reporte.Fallidos)).
		Msg("cierre automatico finalizado")
	return reporte, nil
}

func (s *cierreService) barrerCaja(ctx context.Context, cajaID uuid.UUID, dia string) (bool, error) {
	n, err := s.repo.CountCierresDelDia(ctx, nil, cajaID, dia)
	if err != nil {
		return false, apperr.Infra("contar cierres", err)
	}
	if n > 0 {
		return false, nil
	}
	montos, err := s.montosDelDia(ctx, cajaID, dia)
	if err != nil {
		return false, err
	}
	c := &model.CierreCaja{ID: uuid.New(), CajaID: cajaID, FechaDia: dia, Estado: model.CierrePendiente}
	s.liquidar(c, montos, decimal.Zero)
	creado, err := s.repo.CreateCierrePendiente(ctx, nil, c)
	if err != nil {
		return false, apperr.Infra("crear cierre pendiente", err)
	}
	return creado, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// montosCierre are the system-side figures of a closing.
type montosCierre struct {
	sistema         decimal.Decimal
	cuentaCorriente decimal.Decimal
	diferido        decimal.Decimal
}

func (s *cierreService) montosDelDia(ctx context.Context, cajaID uuid.UUID, dia string) (montosCierre, error) {
	p, err := s.jornada.Periodo(dia)
	if err != nil {
		return montosCierre{}, err
	}
	t, err := s.totalSistema(ctx, cajaID, dia, p, ModoEntregas)
	if err != nil {
		return montosCierre{}, err
	}
	type pendientes struct{ cc, dif decimal.Decimal }
	pend, err := leer(ctx, "saldos pendientes", func() (pendientes, error) {
		cc, dif, err := s.ventas.SumPendientes(ctx, cajaID, p)
		return pendientes{cc, dif}, err
	})
	if err != nil {
		return montosCierre{}, err
	}
	return montosCierre{sistema: t.Total, cuentaCorriente: pend.cc, diferido: pend.dif}, nil
}

// liquidar fills the settled figures, classifies the discrepancy and seals the row.
func (s *cierreService) liquidar(c *model.CierreCaja, m montosCierre, contado decimal.Decimal) {
	c.TotalSistema = m.sistema
	c.TotalContado = contado
	c.Diferencia = contado.Sub(m.sistema)
	c.TotalCuentaCorriente = m.cuentaCorriente
	c.TotalDiferido = m.diferido
	c.ClasificacionDesvio = clasificarDesvio(porcentajeDesvio(c.Diferencia, c.TotalSistema))
	c.Fecha = s.jornada.Ahora()
	c.Sello = SellarCierre(c)
}

func (s *cierreService) cierreDelDia(ctx context.Context, tx *gorm.DB, cajaID uuid.UUID, dia, estado string) (*model.CierreCaja, error) {
	c, err := s.repo.FindCierreDelDia(ctx, tx, cajaID, dia, estado)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return c, err
}

func (s *cierreService) buscarCaja(ctx context.Context, cajaID uuid.UUID) (*model.Caja, error) {
	c, err := s.repo.FindCaja(ctx, cajaID)
	if err != nil {
		return nil, traducir("buscar caja", "caja", cajaID.String(), err)
	}
	return c, nil
}

func (s *cierreService) listCajas(ctx context.Context) func() ([]model.Caja, error) {
	return func() ([]model.Caja, error) { return s.repo.ListCajas(ctx) }
}

// errorCierre turns a unique-index violation (two closings of the same kind
// for one register and day) into InvalidStateError.
func (s *cierreService) errorCierre(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.InvalidState("la caja ya tiene un cierre de ese tipo para el día")
	}
	return apperr.Infra(op, err)
}

func validarModo(modo string) (string, error) {
	switch modo {
	case "":
		return ModoEntregas, nil
	case ModoEntregas, ModoVentasPagadas:
		return modo, nil
	}
	return "", apperr.Validation("modo %q desconocido, se espera entregas o ventas_pagadas", modo)
}

// porcentajeDesvio is diferencia as a percentage of the system total. With a
// zero system total any difference counts as 100%.
func porcentajeDesvio(diferencia, sistema decimal.Decimal) decimal.Decimal {
	if sistema.IsZero() {
		switch {
		case diferencia.IsZero():
			return decimal.Zero
		case diferencia.IsNegative():
			return decimal.NewFromInt(-100)
		default:
			return decimal.NewFromInt(100)
		}
	}
	return diferencia.Div(sistema).Mul(decimal.NewFromInt(100)).Round(2)
}

// clasificarDesvio returns "normal" | "advertencia" | "critico"
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	one := decimal.NewFromInt(1)
	five := decimal.NewFromInt(5)
	switch {
	case abs.LessThanOrEqual(one):
		return "normal"
	case abs.LessThanOrEqual(five):
		return "advertencia"
	default:
		return "critico"
	}
}
