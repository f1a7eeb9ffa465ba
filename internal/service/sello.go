package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"cajapos/internal/model"
)

// SellarCierre computes the tamper-evident seal of a closing: a SHA-256 over
// every settled field. Any later change to amounts, operator, state or day
// makes VerificarSello fail.
func SellarCierre(c *model.CierreCaja) string {
	usuario := ""
	if c.UsuarioID != nil {
		usuario = c.UsuarioID.String()
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		c.ID, c.CajaID, usuario, c.FechaDia, c.Estado,
		c.TotalSistema.StringFixed(2), c.TotalContado.StringFixed(2), c.Diferencia.StringFixed(2),
		c.TotalCuentaCorriente.StringFixed(2), c.TotalDiferido.StringFixed(2),
		c.Fecha.UTC().Format("2006-01-02T15:04:05.000000Z"),
	)
	return hex.EncodeToString(h.Sum(nil))
}

func VerificarSello(c *model.CierreCaja) bool {
	if c.Sello == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Sello), []byte(SellarCierre(c))) == 1
}
