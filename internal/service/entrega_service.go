package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"cajapos/internal/apperr"
	"cajapos/internal/dto"
	"cajapos/internal/model"
	"cajapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EntregaService interface {
	// RegistrarEntrega records a payment or defers a sale. A non-empty
	// idempotencyKey makes replays return the first response.
	RegistrarEntrega(ctx context.Context, idempotencyKey string, req dto.RegistrarEntregaRequest) (*dto.RegistrarEntregaResponse, error)
	ListarEntregas(ctx context.Context, filter dto.EntregaFilter) (*dto.EntregaListResponse, error)
	CorregirMonto(ctx context.Context, id uuid.UUID, monto decimal.Decimal) (*dto.RegistrarEntregaResponse, error)
	EliminarEntrega(ctx context.Context, id uuid.UUID) (*dto.RegistrarEntregaResponse, error)
}

type entregaService struct {
	repo         repository.EntregaRepository
	ventas       repository.VentaRepository
	secuencias   repository.SecuenciaRepository
	jornada      *Jornada
	hooks        Hooks
	cache        CacheLectura
	idempotencia IdempotenciaStore
	maxIntentos  int
}

func NewEntregaService(
	repo repository.EntregaRepository,
	ventas repository.VentaRepository,
	secuencias repository.SecuenciaRepository,
	jornada *Jornada,
	hooks Hooks,
	cache CacheLectura,
	idempotencia IdempotenciaStore,
	maxIntentos int,
) EntregaService {
	if maxIntentos < 1 {
		maxIntentos = 1
	}
	return &entregaService{
		repo:         repo,
		ventas:       ventas,
		secuencias:   secuencias,
		jornada:      jornada,
		hooks:        hooks,
		cache:        cache,
		idempotencia: idempotencia,
		maxIntentos:  maxIntentos,
	}
}

// ── RegistrarEntrega ──────────────────────────────────────────────────────────
//   1. Validate method and amount (or the deferral flag)
//   2. Reserve the payment number outside the main TX (falls back, never blocks)
//   3. BEGIN TX: lock the sale, reject overpayment, CAS the balances, insert entrega
//   4. On a lost update the whole TX is retried, up to maxIntentos
//   5. COMMIT, then post-commit hooks

func (s *entregaService) RegistrarEntrega(ctx context.Context, idempotencyKey string, req dto.RegistrarEntregaRequest) (*dto.RegistrarEntregaResponse, error) {
	if idempotencyKey == "" || s.idempotencia == nil {
		return s.registrar(ctx, req)
	}

	huella := huellaSolicitud(req)
	previo, nuevo, err := s.idempotencia.Reservar(ctx, idempotencyKey)
	if err != nil {
		log.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("idempotencia no disponible, se registra sin deduplicar")
		return s.registrar(ctx, req)
	}
	if !nuevo {
		if previo == nil {
			return nil, apperr.Conflict("otra solicitud con la misma Idempotency-Key está en curso")
		}
		var previa respuestaIdempotente
		if err := json.Unmarshal(previo, &previa); err != nil {
			return nil, apperr.Infra("leer respuesta idempotente", err)
		}
		if previa.Huella != huella {
			return nil, apperr.Validation("la Idempotency-Key ya se usó con otra solicitud")
		}
		return &previa.Respuesta, nil
	}

	resp, err := s.registrar(ctx, req)
	if err != nil {
		if relErr := s.idempotencia.Liberar(context.WithoutCancel(ctx), idempotencyKey); relErr != nil {
			log.Warn().Err(relErr).Str("idempotency_key", idempotencyKey).Msg("no se pudo liberar la Idempotency-Key")
		}
		return nil, err
	}
	if b, jsonErr := json.Marshal(respuestaIdempotente{Huella: huella, Respuesta: *resp}); jsonErr == nil {
		if err := s.idempotencia.Guardar(context.WithoutCancel(ctx), idempotencyKey, b); err != nil {
			log.Warn().Err(err).Str("idempotency_key", idempotencyKey).Msg("no se pudo guardar la respuesta idempotente")
		}
	}
	return resp, nil
}

// respuestaIdempotente is what the store keeps per key: the first response
// and the fingerprint of the request that produced it.
type respuestaIdempotente struct {
	Huella    string                       `json:"huella"`
	Respuesta dto.RegistrarEntregaResponse `json:"respuesta"`
}

// huellaSolicitud fingerprints the fields that decide what a payment does.
// Equal amounts hash the same regardless of trailing zeros.
func huellaSolicitud(req dto.RegistrarEntregaRequest) string {
	venta := ""
	if req.VentaID != nil {
		venta = *req.VentaID
	}
	metodo, monto := req.MetodoPago, req.Monto.String()
	if req.Diferir {
		metodo, monto = 0, ""
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%t|%d|%s", venta, req.CajaID, req.NegocioID, req.Diferir, metodo, monto)))
	return hex.EncodeToString(sum[:])
}

func (s *entregaService) registrar(ctx context.Context, req dto.RegistrarEntregaRequest) (*dto.RegistrarEntregaResponse, error) {
	cajaID, err := parseUUID("caja_id", req.CajaID)
	if err != nil {
		return nil, err
	}
	negocioID, err := parseUUID("negocio_id", req.NegocioID)
	if err != nil {
		return nil, err
	}
	ventaID, err := parseUUIDOpcional("venta_id", req.VentaID)
	if err != nil {
		return nil, err
	}

	if req.Diferir {
		if ventaID == nil {
			return nil, apperr.Validation("diferir requiere venta_id")
		}
		return s.conReintentos(ctx, func() (*dto.RegistrarEntregaResponse, error) {
			return s.diferir(ctx, *ventaID, negocioID)
		})
	}

	metodo := model.MetodoPago(req.MetodoPago)
	if !metodo.Valido() {
		return nil, apperr.Validation("metodo_pago %d desconocido", req.MetodoPago)
	}
	if !req.Monto.IsPositive() {
		return nil, apperr.Validation("el monto debe ser mayor a cero")
	}
	if err := centavos("monto", req.Monto); err != nil {
		return nil, err
	}

	ahora := s.jornada.Ahora()
	entrega := model.Entrega{
		Numero:     s.reservarNumero(ctx, ahora),
		VentaID:    ventaID,
		CajaID:     cajaID,
		NegocioID:  negocioID,
		MetodoPago: metodo,
		Monto:      req.Monto,
	}
	return s.conReintentos(ctx, func() (*dto.RegistrarEntregaResponse, error) {
		e := entrega
		e.ID = uuid.New()
		e.CreatedAt = ahora
		return s.aplicarEntrega(ctx, &e)
	})
}

// conReintentos re-runs a whole payment transaction after a lost update.
// Nothing was committed by the failed attempt.
func (s *entregaService) conReintentos(ctx context.Context, fn func() (*dto.RegistrarEntregaResponse, error)) (*dto.RegistrarEntregaResponse, error) {
	var err error
	for intento := 1; intento <= s.maxIntentos; intento++ {
		var resp *dto.RegistrarEntregaResponse
		resp, err = fn()
		if err == nil || !apperr.IsConflict(err) {
			return resp, err
		}
		log.Warn().Err(err).Int("intento", intento).Msg("conflicto de concurrencia en la venta, reintentando")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperr.Infra("registrar entrega", ctxErr)
		}
	}
	return nil, err
}

func (s *entregaService) aplicarEntrega(ctx context.Context, e *model.Entrega) (*dto.RegistrarEntregaResponse, error) {
	var venta *model.Venta
	txErr := runTx(ctx, s.ventas.DB(), func(tx *gorm.DB) error {
		if e.VentaID != nil {
			v, err := s.ventas.FindForUpdate(ctx, tx, *e.VentaID)
			if err != nil {
				return traducir("buscar venta", "venta", e.VentaID.String(), err)
			}
			if err := mismoNegocio(v, e.NegocioID); err != nil {
				return err
			}
			nuevoPagado := v.TotalPagado.Add(e.Monto)
			if nuevoPagado.GreaterThan(v.Total) {
				return apperr.Overpayment(nuevoPagado.Sub(v.Total))
			}
			aplicarSaldo(v, nuevoPagado)
			v.EstadoPago = DerivarEstadoPago(v.Total, v.TotalPagado, false)
			if err := s.guardarSaldos(ctx, tx, v); err != nil {
				return err
			}
			venta = v
		}
		return s.repo.Create(ctx, tx, e)
	})
	if txErr != nil {
		return nil, apperr.Infra("registrar entrega", txErr)
	}

	entregaResp := entregaToResponse(e)
	resp := &dto.RegistrarEntregaResponse{Entrega: &entregaResp}
	if venta != nil {
		v := notificarVenta(ctx, s.ventas, s.hooks, venta, dto.EventoSaleUpdated, CacheVentas, CacheEntregas, CacheEntregasNegocio)
		resp.Venta = &v
	} else {
		s.hooks.disparar(ctx, Mutacion{CajaID: e.CajaID, Caches: []string{CacheEntregas, CacheEntregasNegocio}})
	}
	log.Info().Str("entrega", e.Numero).Str("caja", e.CajaID.String()).Str("monto", e.Monto.StringFixed(2)).Msg("entrega registrada")
	return resp, nil
}

// diferir marks the sale as deferred to another day. No payment row is written.
func (s *entregaService) diferir(ctx context.Context, ventaID, negocioID uuid.UUID) (*dto.RegistrarEntregaResponse, error) {
	var venta *model.Venta
	txErr := runTx(ctx, s.ventas.DB(), func(tx *gorm.DB) error {
		v, err := s.ventas.FindForUpdate(ctx, tx, ventaID)
		if err != nil {
			return traducir("buscar venta", "venta", ventaID.String(), err)
		}
		if err := mismoNegocio(v, negocioID); err != nil {
			return err
		}
		if v.EstadoPago == model.EstadoPagado {
			return apperr.InvalidState("la venta %s ya está pagada", v.Numero)
		}
		v.EstadoPago = DerivarEstadoPago(v.Total, v.TotalPagado, true)
		if err := s.guardarSaldos(ctx, tx, v); err != nil {
			return err
		}
		venta = v
		return nil
	})
	if txErr != nil {
		return nil, apperr.Infra("diferir venta", txErr)
	}
	v := notificarVenta(ctx, s.ventas, s.hooks, venta, dto.EventoSaleDeferred, CacheVentas)
	return &dto.RegistrarEntregaResponse{Venta: &v}, nil
}

// mismoNegocio keeps a payment on the account statement of the sale's business.
func mismoNegocio(v *model.Venta, negocioID uuid.UUID) error {
	if v.NegocioID != negocioID {
		return apperr.Validation("negocio_id %s no corresponde a la venta %s", negocioID, v.Numero)
	}
	return nil
}

// guardarSaldos compare-and-swaps the sale balances on its version.
func (s *entregaService) guardarSaldos(ctx context.Context, tx *gorm.DB, v *model.Venta) error {
	ok, err := s.ventas.UpdateSaldos(ctx, tx, v)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("la venta %s fue modificada concurrentemente", v.ID)
	}
	v.Version++
	return nil
}

// reservarNumero returns YYYYMMDD-0001.. for the day, or E<unix millis> when the
// sequence cannot be reserved.
func (s *entregaService) reservarNumero(ctx context.Context, ahora time.Time) string {
	n, err := s.secuencias.Reservar(ctx, nil, "entrega", s.jornada.Dia(ahora))
	if err != nil {
		log.Warn().Err(err).Msg("secuencia de entregas no disponible, se usa numero de respaldo")
		return fmt.Sprintf("E%d", ahora.UnixMilli())
	}
	return fmt.Sprintf("%s-%04d", ahora.Format("20060102"), n)
}

// ── ListarEntregas ────────────────────────────────────────────────────────────

func (s *entregaService) ListarEntregas(ctx context.Context, filter dto.EntregaFilter) (*dto.EntregaListResponse, error) {
	q := repository.EntregaQuery{Offset: (filter.Page - 1) * filter.Limit, Limit: filter.Limit}
	var err error
	if q.CajaID, err = parseUUIDOpcional("caja_id", &filter.CajaID); err != nil {
		return nil, err
	}
	if q.NegocioID, err = parseUUIDOpcional("negocio_id", &filter.NegocioID); err != nil {
		return nil, err
	}
	if filter.Desde == "" && filter.Hasta == "" {
		filter.Desde = s.jornada.Hoy()
		filter.Hasta = filter.Desde
	}
	if q.Periodo, err = s.jornada.Rango(filter.Desde, filter.Hasta); err != nil {
		return nil, err
	}

	prefijo := CacheEntregas
	if q.NegocioID != nil {
		prefijo = CacheEntregasNegocio
	}
	clave := claveCache(prefijo, filter)
	if s.cache != nil {
		var cached dto.EntregaListResponse
		if s.cache.Obtener(ctx, clave, &cached) {
			return &cached, nil
		}
	}

	entregas, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, apperr.Infra("listar entregas", err)
	}
	resp := &dto.EntregaListResponse{Data: make([]dto.EntregaResponse, 0, len(entregas)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for i := range entregas {
		resp.Data = append(resp.Data, entregaToResponse(&entregas[i]))
	}
	if s.cache != nil {
		s.cache.Guardar(ctx, clave, resp)
	}
	return resp, nil
}

// ── CorregirMonto / EliminarEntrega ───────────────────────────────────────────
// Legacy correction paths. Both move the linked sale's paid amount by the
// delta inside the same TX so the balance invariant keeps holding.

func (s *entregaService) CorregirMonto(ctx context.Context, id uuid.UUID, monto decimal.Decimal) (*dto.RegistrarEntregaResponse, error) {
	if !monto.IsPositive() {
		return nil, apperr.Validation("el monto debe ser mayor a cero")
	}
	if err := centavos("monto", monto); err != nil {
		return nil, err
	}
	return s.ajustar(ctx, id, func(e *model.Entrega) decimal.Decimal { return monto.Sub(e.Monto) }, func(tx *gorm.DB, e *model.Entrega) error {
		if err := s.repo.UpdateMonto(ctx, tx, e.ID, monto); err != nil {
			return err
		}
		e.Monto = monto
		return nil
	})
}

func (s *entregaService) EliminarEntrega(ctx context.Context, id uuid.UUID) (*dto.RegistrarEntregaResponse, error) {
	return s.ajustar(ctx, id, func(e *model.Entrega) decimal.Decimal { return e.Monto.Neg() }, func(tx *gorm.DB, e *model.Entrega) error {
		return s.repo.Delete(ctx, tx, e.ID)
	})
}

func (s *entregaService) ajustar(
	ctx context.Context,
	id uuid.UUID,
	delta func(e *model.Entrega) decimal.Decimal,
	escribir func(tx *gorm.DB, e *model.Entrega) error,
) (*dto.RegistrarEntregaResponse, error) {
	var (
		entrega *model.Entrega
		venta   *model.Venta
	)
	txErr := runTx(ctx, s.ventas.DB(), func(tx *gorm.DB) error {
		e, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return traducir("buscar entrega", "entrega", id.String(), err)
		}
		if e.VentaID != nil {
			v, err := s.ventas.FindForUpdate(ctx, tx, *e.VentaID)
			if err != nil {
				return traducir("buscar venta", "venta", e.VentaID.String(), err)
			}
			nuevoPagado := v.TotalPagado.Add(delta(e))
			if nuevoPagado.GreaterThan(v.Total) {
				return apperr.Overpayment(nuevoPagado.Sub(v.Total))
			}
			if nuevoPagado.IsNegative() {
				return apperr.InvalidState("la venta %s quedaría con pagos negativos", v.Numero)
			}
			aplicarSaldo(v, nuevoPagado)
			v.EstadoPago = recalcularEstado(v)
			if err := s.guardarSaldos(ctx, tx, v); err != nil {
				return err
			}
			venta = v
		}
		if err := escribir(tx, e); err != nil {
			return err
		}
		entrega = e
		return nil
	})
	if txErr != nil {
		return nil, apperr.Infra("ajustar entrega", txErr)
	}

	entregaResp := entregaToResponse(entrega)
	resp := &dto.RegistrarEntregaResponse{Entrega: &entregaResp}
	if venta != nil {
		v := notificarVenta(ctx, s.ventas, s.hooks, venta, dto.EventoSaleUpdated, CacheVentas, CacheEntregas, CacheEntregasNegocio)
		resp.Venta = &v
	} else {
		s.hooks.disparar(ctx, Mutacion{CajaID: entrega.CajaID, Caches: []string{CacheEntregas, CacheEntregasNegocio}})
	}
	return resp, nil
}
