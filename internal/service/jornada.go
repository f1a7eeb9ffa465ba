package service

import (
	"time"
	_ "time/tzdata"

	"cajapos/internal/apperr"
	"cajapos/internal/repository"
)

const formatoDia = "2006-01-02"

// Jornada turns business days (YYYY-MM-DD in the configured timezone) into
// storage time ranges. Every day window in the services goes through it, so
// the registry snapshot and the settlement totals always agree on "today".
type Jornada struct {
	loc *time.Location
	now func() time.Time
}

// NewJornada builds a Jornada for loc. now defaults to time.Now.
func NewJornada(loc *time.Location, now func() time.Time) *Jornada {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Jornada{loc: loc, now: now}
}

func (j *Jornada) Location() *time.Location { return j.loc }

func (j *Jornada) Ahora() time.Time { return j.now().In(j.loc) }

// Dia formats t as the business day it belongs to.
func (j *Jornada) Dia(t time.Time) string { return t.In(j.loc).Format(formatoDia) }

func (j *Jornada) Hoy() string { return j.Dia(j.now()) }

// Periodo returns [00:00, next 00:00) of dia. An empty dia means today.
func (j *Jornada) Periodo(dia string) (repository.Periodo, error) {
	if dia == "" {
		dia = j.Hoy()
	}
	inicio, err := time.ParseInLocation(formatoDia, dia, j.loc)
	if err != nil {
		return repository.Periodo{}, apperr.Validation("fecha %q inválida, se espera YYYY-MM-DD", dia)
	}
	return repository.Periodo{Desde: inicio, Hasta: inicio.AddDate(0, 0, 1)}, nil
}

// Rango returns the period covering desde..hasta inclusive. Either bound may
// be empty to leave that side open.
func (j *Jornada) Rango(desde, hasta string) (repository.Periodo, error) {
	var p repository.Periodo
	if desde != "" {
		d, err := j.Periodo(desde)
		if err != nil {
			return p, err
		}
		p.Desde = d.Desde
	}
	if hasta != "" {
		h, err := j.Periodo(hasta)
		if err != nil {
			return p, err
		}
		p.Hasta = h.Hasta
	}
	if !p.Desde.IsZero() && !p.Hasta.IsZero() && !p.Desde.Before(p.Hasta) {
		return p, apperr.Validation("rango de fechas inválido: desde %s posterior a hasta %s", desde, hasta)
	}
	return p, nil
}
