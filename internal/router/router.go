package router

import (
	"context"
	"time"

	"cajapos/internal/cache"
	"cajapos/internal/config"
	"cajapos/internal/dto"
	"cajapos/internal/handler"
	"cajapos/internal/middleware"
	"cajapos/internal/realtime"
	"cajapos/internal/repository"
	"cajapos/internal/service"
	"cajapos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// App is the wired service: the HTTP engine plus the background loops that
// Start launches.
type App struct {
	Engine   *gin.Engine
	Registry *realtime.Registry
	Cierres  service.CierreService
	Jornada  *service.Jornada

	cfg     *config.Config
	rdb     *redis.Client
	relay   *realtime.Relay
	limiter *middleware.RateLimiter
}

// New wires all dependencies and returns the application.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis.
// rdb may be nil: caching, idempotency keys, the relay and the sweep lock are
// then disabled.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:     cfg,
		rdb:     rdb,
		limiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute),
		Jornada: service.NewJornada(loc, time.Now),
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.ListaCORS()))
	r.Use(middleware.ErrorHandler())
	r.Use(app.limiter.Middleware())

	// ── Repositories ─────────────────────────────────────────────────────────
	ventaRepo := repository.NewVentaRepository(db)
	entregaRepo := repository.NewEntregaRepository(db)
	cajaRepo := repository.NewCajaRepository(db)
	negocioRepo := repository.NewNegocioRepository(db)
	secuenciaRepo := repository.NewSecuenciaRepository(db)

	// ── Post-commit hooks ────────────────────────────────────────────────────
	// The registry reads its snapshot through the sale service, which is
	// built below with the registry among its hooks.
	var ventaSvc service.VentaService
	app.Registry = realtime.NewRegistry(
		realtime.FuenteFunc(func(ctx context.Context, cajaID uuid.UUID) ([]dto.VentaResponse, error) {
			return ventaSvc.VentasDelDia(ctx, cajaID)
		}),
		realtime.Opciones{BufferConexion: cfg.WSSendBuffer, Hoy: app.Jornada.Hoy},
	)

	var (
		lectura      service.CacheLectura
		idempotencia service.IdempotenciaStore
	)
	hooks := service.Hooks{app.Registry}
	if rdb != nil {
		lectura = cache.NewLectura(rdb)
		idempotencia = cache.NewIdempotencia(rdb, cfg.IdempotencyTTL())
		hooks = append(service.Hooks{cache.NewInvalidador(rdb, cfg.CacheInvalidationTimeout(), nil)}, hooks...)
		if cfg.RealtimeRelayEnabled {
			app.relay = realtime.NewRelay(rdb, cfg.RealtimeRelayChannel, app.Registry)
			hooks = append(hooks, app.relay)
		}
	}

	// ── Services ─────────────────────────────────────────────────────────────
	ventaSvc = service.NewVentaService(ventaRepo, entregaRepo, negocioRepo, secuenciaRepo, app.Jornada, hooks, lectura)
	entregaSvc := service.NewEntregaService(entregaRepo, ventaRepo, secuenciaRepo, app.Jornada, hooks, lectura, idempotencia, cfg.PaymentMaxRetries)
	app.Cierres = service.NewCierreService(cajaRepo, ventaRepo, entregaRepo, app.Jornada, hooks)
	resumenSvc := service.NewResumenService(negocioRepo, ventaRepo, entregaRepo, app.Jornada)

	// ── Handlers ─────────────────────────────────────────────────────────────
	ventasH := handler.NewVentasHandler(ventaSvc)
	entregasH := handler.NewEntregasHandler(entregaSvc)
	cajasH := handler.NewCajasHandler(app.Cierres)
	cierresH := handler.NewCierresHandler(app.Cierres)
	resumenH := handler.NewResumenHandler(resumenSvc)
	wsH := handler.NewRealtimeHandler(realtime.NewTransporte(app.Registry, cfg.WSPingInterval(), cfg.ListaCORS()))

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Realtime channel: terminals join by caja id, outside JWT
	r.GET("/v1/ws", wsH.Conectar)

	// Protected routes
	todos := middleware.RequireRole(middleware.RolAdmin, middleware.RolEncargado, middleware.RolRepartidor)
	gestion := middleware.RequireRole(middleware.RolAdmin, middleware.RolEncargado)
	admin := middleware.RequireRole(middleware.RolAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.POST("/ventas", todos, ventasH.CrearVenta)
		v1.GET("/ventas", todos, ventasH.ListarVentas)
		v1.GET("/ventas/:id", todos, ventasH.ObtenerVenta)
		v1.DELETE("/ventas/:id", gestion, ventasH.EliminarVenta)
		v1.PATCH("/ventas/:id/total", gestion, ventasH.CorregirTotal)

		v1.POST("/entregas", todos, entregasH.RegistrarEntrega)
		v1.GET("/entregas", todos, entregasH.ListarEntregas)
		v1.PATCH("/entregas/:id", gestion, entregasH.CorregirMonto)
		v1.DELETE("/entregas/:id", gestion, entregasH.EliminarEntrega)

		v1.GET("/cajas", todos, cajasH.ListarCajas)
		v1.GET("/cajas/totales-dia", gestion, cajasH.TotalesDelDia)
		v1.GET("/cajas/:id/totales", gestion, cajasH.TotalSistema)

		// repartidores never close a register
		v1.POST("/cierres", gestion, cierresH.CrearCierre)
		v1.PATCH("/cierres/:id/cerrar", gestion, cierresH.CerrarPendiente)
		v1.GET("/cierres", gestion, cierresH.ListarCierres)
		v1.POST("/cierres/auto", admin, cierresH.CierreAutomatico)

		v1.GET("/resumen-cuenta/negocio/:id", gestion, resumenH.ResumenCuenta)
	}

	app.Engine = r
	return app, nil
}

// Start launches the background loops: realtime fan-out, the optional relay
// subscriber, the rate limiter purge and the daily sweep. All stop with ctx.
func (a *App) Start(ctx context.Context) error {
	go a.Registry.Run(ctx)
	go a.limiter.Purge(ctx)

	if a.relay != nil {
		go func() {
			if err := a.relay.Run(ctx); err != nil {
				log.Error().Err(err).Msg("realtime relay stopped")
			}
		}()
	}

	if a.cfg.CierreAutoEnabled {
		hora, minuto, err := a.cfg.HoraCierre()
		if err != nil {
			return err
		}
		cron := worker.CierreCronConfig{Cierres: a.Cierres, Jornada: a.Jornada, Hora: hora, Minuto: minuto}
		if a.rdb != nil {
			cron.Locker = worker.NewRedisLocker(a.rdb)
			cron.DLQ = worker.NewRedisDLQ(a.rdb)
		}
		worker.StartCierreCron(ctx, cron)
	}
	return nil
}
