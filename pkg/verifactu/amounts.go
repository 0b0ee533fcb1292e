package verifactu

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount formatea un importe para la cadena de huella y el XML:
// redondeo a 2 decimales y eliminación de ceros finales y del punto sobrante.
// Ejemplos: 123.10 → "123.1", 100.00 → "100", 0.00 → "0", 99.99 → "99.99".
// La operación es idempotente: formatear un valor ya formateado no lo cambia.
func FormatAmount(d decimal.Decimal) string {
	s := d.Round(2).StringFixed(2)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
