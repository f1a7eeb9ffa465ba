package worker

// cierre_cron.go
// Background goroutine that runs the pending-closing sweep once a day at
// CIERRE_AUTO_HORA in the business timezone. A Redis lock keyed by day keeps
// the sweep to one instance; if Redis is down the sweep runs anyway, since
// it is idempotent per register and day.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cajapos/internal/dto"
	"cajapos/internal/service"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const sweepLockTTL = time.Hour

// ErrLockHeld means another instance already owns the day's sweep.
var ErrLockHeld = errors.New("sweep lock held by another instance")

// Barrido is the sweep the cron triggers.
type Barrido interface {
	CierreAutomatico(ctx context.Context, dia string) (*dto.ReporteBarridoResponse, error)
}

// Locker grants a key for ttl. The lock is left to expire so a lagging
// instance cannot repeat the day's sweep.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) error
}

type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) error {
	_, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLockHeld
	}
	return err
}

// CierreCronConfig holds all dependencies for the sweep goroutine. Locker and
// DLQ are optional.
type CierreCronConfig struct {
	Cierres Barrido
	Jornada *service.Jornada
	Hora    int
	Minuto  int
	Locker  Locker
	DLQ     DeadLetters
}

// StartCierreCron launches the daily sweep goroutine. It respects the context
// for graceful shutdown.
func StartCierreCron(ctx context.Context, cfg CierreCronConfig) {
	go func() {
		log.Info().Int("hora", cfg.Hora).Int("minuto", cfg.Minuto).Msg("cierre_cron: started")
		for {
			next := NextRun(cfg.Jornada.Ahora(), cfg.Hora, cfg.Minuto)
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Info().Msg("cierre_cron: shutting down")
				return
			case <-timer.C:
				// the day is the scheduled one, even if the timer fired late
				if _, err := RunSweep(ctx, cfg, cfg.Jornada.Dia(next)); err != nil && !errors.Is(err, ErrLockHeld) {
					log.Error().Err(err).Msg("cierre_cron: sweep failed")
				}
			}
		}
	}()
}

// NextRun returns the first hora:minuto strictly after now, in now's location.
func NextRun(now time.Time, hora, minuto int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hora, minuto, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hora, minuto, 0, 0, now.Location())
	}
	return next
}

// RunSweep runs the sweep for dia under the day's lock and parks every
// per-register failure in the DLQ.
func RunSweep(ctx context.Context, cfg CierreCronConfig, dia string) (*dto.ReporteBarridoResponse, error) {
	if cfg.Locker != nil {
		err := cfg.Locker.Obtain(ctx, "lock:cierre-auto:"+dia, sweepLockTTL)
		switch {
		case errors.Is(err, ErrLockHeld):
			log.Info().Str("fecha", dia).Msg("cierre_cron: sweep owned by another instance, skipping")
			return nil, err
		case err != nil:
			log.Warn().Err(err).Str("fecha", dia).Msg("cierre_cron: lock unavailable, sweeping without lock")
		}
	}

	reporte, err := cfg.Cierres.CierreAutomatico(ctx, dia)
	if err != nil {
		return nil, err
	}

	if cfg.DLQ != nil {
		for _, f := range reporte.Fallidos {
			payload, _ := json.Marshal(map[string]string{"caja_id": f.CajaID, "fecha": dia})
			entry := DLQEntry{
				Queue:    QueueCierres,
				JobType:  "cierre_automatico",
				Payload:  payload,
				Reason:   f.Error,
				Attempts: 1,
			}
			if err := cfg.DLQ.Send(ctx, entry); err != nil {
				log.Error().Err(err).Str("caja_id", f.CajaID).Msg("cierre_cron: failed to push to DLQ")
			}
		}
	}
	return reporte, nil
}
