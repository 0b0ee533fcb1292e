package verifactu

import (
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// BuildQRURL construye la URL de cotejo que viaja dentro del QR de la factura
// (el generador de imagen QR es un colaborador externo). Los parámetros van
// query-encoded contra el servicio ValidarQR del entorno correspondiente.
func BuildQRURL(env, issuerNIF, invoiceNumber string, issueDate time.Time, total decimal.Decimal) string {
	base := qrBaseSandbox
	if env == EnvProduction {
		base = qrBaseProd
	}
	q := url.Values{}
	q.Set("nif", issuerNIF)
	q.Set("numserie", invoiceNumber)
	q.Set("fecha", issueDate.Format(ExpeditionDateLayout))
	q.Set("importe", FormatAmount(total))
	return base + "?" + q.Encode()
}
