package service

import (
	"context"
	"fmt"

	"cajapos/internal/apperr"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VentaService interface {
	CrearVenta(ctx context.Context, req dto.CrearVentaRequest) (*dto.VentaResponse, error)
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
	EliminarVenta(ctx context.Context, id, cajaID uuid.UUID) error
	CorregirTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) (*dto.VentaResponse, error)
	// VentasDelDia is the snapshot replayed to terminals joining the register.
	VentasDelDia(ctx context.Context, cajaID uuid.UUID) ([]dto.VentaResponse, error)
}

type ventaService struct {
	repo       repository.VentaRepository
	entregas   repository.EntregaRepository
	negocios   repository.NegocioRepository
	secuencias repository.SecuenciaRepository
	jornada    *Jornada
	hooks      Hooks
	cache      CacheLectura
}

func NewVentaService(
	repo repository.VentaRepository,
	entregas repository.EntregaRepository,
	negocios repository.NegocioRepository,
	secuencias repository.SecuenciaRepository,
	jornada *Jornada,
	hooks Hooks,
	cache CacheLectura,
) VentaService {
	return &ventaService{
		repo:       repo,
		entregas:   entregas,
		negocios:   negocios,
		secuencias: secuencias,
		jornada:    jornada,
		hooks:      hooks,
		cache:      cache,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── CrearVenta ────────────────────────────────────────────────────────────────
//   1. Validate line items, compute subtotals and total (never recomputed later)
//   2. Resolve the business to pick the initial payment state
//   3. BEGIN TX: reserve the day's sale number, insert venta + detalles
//   4. COMMIT, then post-commit hooks (cache invalidation, new-sale broadcast)

func (s *ventaService) CrearVenta(ctx context.Context, req dto.CrearVentaRequest) (*dto.VentaResponse, error) {
	if len(req.Detalles) == 0 {
		return nil, apperr.Validation("la venta debe tener al menos un detalle")
	}
	negocioID, err := parseUUID("negocio_id", req.NegocioID)
	if err != nil {
		return nil, err
	}
	cajaID, err := parseUUID("caja_id", req.CajaID)
	if err != nil {
		return nil, err
	}
	clienteID, err := parseUUIDOpcional("cliente_id", req.ClienteID)
	if err != nil {
		return nil, err
	}

	detalles := make([]model.DetalleVenta, 0, len(req.Detalles))
	total := decimal.Zero
	for i, d := range req.Detalles {
		productoID, err := parseUUID("producto_id", d.ProductoID)
		if err != nil {
			return nil, err
		}
		if d.Cantidad < 1 {
			return nil, apperr.Validation("detalle %d: la cantidad debe ser al menos 1", i+1)
		}
		if d.PrecioUnitario.IsNegative() {
			return nil, apperr.Validation("detalle %d: el precio no puede ser negativo", i+1)
		}
		if err := centavos(fmt.Sprintf("detalle %d: precio_unitario", i+1), d.PrecioUnitario); err != nil {
			return nil, err
		}
		subtotal := d.PrecioUnitario.Mul(decimal.NewFromInt(int64(d.Cantidad)))
		total = total.Add(subtotal)
		detalles = append(detalles, model.DetalleVenta{
			Orden:          i + 1,
			ProductoID:     productoID,
			PrecioUnitario: d.PrecioUnitario,
			Cantidad:       d.Cantidad,
			Subtotal:       subtotal,
		})
	}

	negocio, err := s.negocios.FindByID(ctx, negocioID)
	if err != nil {
		return nil, traducir("buscar negocio", "negocio", negocioID.String(), err)
	}

	ahora := s.jornada.Ahora()
	venta := model.Venta{
		ID:             uuid.New(),
		CajaID:         cajaID,
		NegocioID:      negocioID,
		ClienteID:      clienteID,
		Total:          total,
		TotalPagado:    decimal.Zero,
		RestoPendiente: total,
		EstadoPago:     EstadoInicial(negocio.EsCuentaCorriente),
		Version:        1,
		CreatedAt:      ahora,
		Detalles:       detalles,
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		n, err := s.secuencias.Reservar(ctx, tx, "venta", s.jornada.Dia(ahora))
		if err != nil {
			return err
		}
		venta.Numero = fmt.Sprintf("V%05d", n)
		return s.repo.Create(ctx, tx, &venta)
	})
	if txErr != nil {
		return nil, apperr.Infra("crear venta", txErr)
	}

	resp := ventaToResponse(&venta)
	s.hooks.disparar(ctx, Mutacion{
		Evento:  dto.EventoNewSale,
		CajaID:  cajaID,
		VentaID: venta.ID,
		Venta:   &resp,
		Caches:  []string{CacheVentas},
	})
	log.Info().Str("venta", venta.Numero).Str("caja", cajaID.String()).Str("total", total.StringFixed(2)).Msg("venta creada")
	return &resp, nil
}

// ── ObtenerVenta / ListarVentas ───────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, traducir("buscar venta", "venta", id.String(), err)
	}
	resp := ventaToResponse(v)
	return &resp, nil
}

func (s *ventaService) ListarVentas(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	q := repository.VentaQuery{Estado: filter.Estado, Offset: (filter.Page - 1) * filter.Limit, Limit: filter.Limit}
	var err error
	if q.CajaID, err = parseUUIDOpcional("caja_id", &filter.CajaID); err != nil {
		return nil, err
	}
	if q.NegocioID, err = parseUUIDOpcional("negocio_id", &filter.NegocioID); err != nil {
		return nil, err
	}
	if q.Periodo, err = s.jornada.Periodo(filter.Fecha); err != nil {
		return nil, err
	}

	if filter.Fecha == "" {
		filter.Fecha = s.jornada.Hoy()
	}
	clave := claveCache(CacheVentas, filter)
	if s.cache != nil {
		var cached dto.VentaListResponse
		if s.cache.Obtener(ctx, clave, &cached) {
			return &cached, nil
		}
	}

	ventas, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, apperr.Infra("listar ventas", err)
	}
	resp := &dto.VentaListResponse{Data: make([]dto.VentaResponse, 0, len(ventas)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for i := range ventas {
		resp.Data = append(resp.Data, ventaToResponse(&ventas[i]))
	}
	if s.cache != nil {
		s.cache.Guardar(ctx, clave, resp)
	}
	return resp, nil
}

// ── EliminarVenta ─────────────────────────────────────────────────────────────
// Removes the sale and its line items. Payments already collected stay in the
// day's total but lose their reference to the sale.

func (s *ventaService) EliminarVenta(ctx context.Context, id, cajaID uuid.UUID) error {
	var venta *model.Venta
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		v, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return traducir("buscar venta", "venta", id.String(), err)
		}
		if cajaID != uuid.Nil && v.CajaID != cajaID {
			return apperr.Validation("la venta %s no pertenece a la caja %s", id, cajaID)
		}
		if _, err := s.entregas.DetachVenta(ctx, tx, id); err != nil {
			return err
		}
		n, err := s.repo.Delete(ctx, tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("venta", id.String())
		}
		venta = v
		return nil
	})
	if txErr != nil {
		return apperr.Infra("eliminar venta", txErr)
	}

	s.hooks.disparar(ctx, Mutacion{
		Evento:  dto.EventoSaleRemoved,
		CajaID:  venta.CajaID,
		VentaID: venta.ID,
		Caches:  []string{CacheVentas, CacheEntregas, CacheEntregasNegocio},
	})
	log.Info().Str("venta", venta.Numero).Str("caja", venta.CajaID.String()).Msg("venta eliminada")
	return nil
}

// ── CorregirTotal ─────────────────────────────────────────────────────────────
// Explicit correction of the immutable total. The new total can never drop
// below what has already been collected.

func (s *ventaService) CorregirTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) (*dto.VentaResponse, error) {
	if total.IsNegative() {
		return nil, apperr.Validation("el total no puede ser negativo")
	}
	if err := centavos("total", total); err != nil {
		return nil, err
	}

	var venta *model.Venta
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		v, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return traducir("buscar venta", "venta", id.String(), err)
		}
		if total.LessThan(v.TotalPagado) {
			return apperr.Validation("el nuevo total %s es menor a lo ya pagado %s", total.StringFixed(2), v.TotalPagado.StringFixed(2))
		}
		v.Total = total
		aplicarSaldo(v, v.TotalPagado)
		v.EstadoPago = recalcularEstado(v)
		ok, err := s.repo.UpdateSaldos(ctx, tx, v)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("la venta %s fue modificada concurrentemente", id)
		}
		v.Version++
		venta = v
		return nil
	})
	if txErr != nil {
		return nil, apperr.Infra("corregir total", txErr)
	}

	resp := notificarVenta(ctx, s.repo, s.hooks, venta, dto.EventoSaleUpdated, CacheVentas)
	return &resp, nil
}

// ── VentasDelDia ──────────────────────────────────────────────────────────────

func (s *ventaService) VentasDelDia(ctx context.Context, cajaID uuid.UUID) ([]dto.VentaResponse, error) {
	p, err := s.jornada.Periodo("")
	if err != nil {
		return nil, err
	}
	ventas, err := leer(ctx, "ventas del dia", func() ([]model.Venta, error) {
		return s.repo.ListDelDia(ctx, cajaID, p)
	})
	if err != nil {
		return nil, err
	}
	out := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		out = append(out, ventaToResponse(&ventas[i]))
	}
	return out, nil
}

// notificarVenta reloads the sale with its line items so the realtime
// snapshot carries the full projection, then runs the post-commit hooks.
func notificarVenta(ctx context.Context, repo repository.VentaRepository, hooks Hooks, v *model.Venta, evento string, caches ...string) dto.VentaResponse {
	if full, err := repo.FindByID(ctx, v.ID); err == nil {
		v = full
	} else {
		log.Warn().Err(err).Str("venta", v.ID.String()).Msg("no se pudo recargar la venta tras commit")
	}
	resp := ventaToResponse(v)
	hooks.disparar(ctx, Mutacion{
		Evento:  evento,
		CajaID:  v.CajaID,
		VentaID: v.ID,
		Venta:   &resp,
		Caches:  caches,
	})
	return resp
}
