package verifactu

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	pkgverifactu "github.com/xcruz-intermega/factu365-sub001/pkg/verifactu"
)

// Namespaces oficiales del servicio de suministro VERI*FACTU.
const (
	nsSoapenv = "http://schemas.xmlsoap.org/soap/envelope/"
	nsSum     = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"
	nsSum1    = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"

	// Catálogos fijos del detalle de desglose (L1 Impuesto, L8 ClaveRegimen, L9
	// CalificacionOperacion): IVA, régimen general, operación sujeta no exenta.
	taxCodeIVA           = "01"
	regimeGeneral        = "01"
	qualificationSubject = "S1"
	operationDescription = "Emisión de factura"
	idOtroTypeNoCensal   = "02" // NIF-IVA / identificador no censado en la AEAT
)

// RecordXMLBuilder serializa registros de facturación al envelope SOAP del
// servicio de suministro. La salida es determinista: mismo contexto, mismos
// bytes (requisito para poder regenerar el XML en auditoría y cotejarlo).
type RecordXMLBuilder struct{}

// NewRecordXMLBuilder crea el servicio.
func NewRecordXMLBuilder() *RecordXMLBuilder {
	return &RecordXMLBuilder{}
}

// BuildRegistration genera el envelope de alta (RegistroAlta) del registro.
func (b *RecordXMLBuilder) BuildRegistration(ctx *RecordBuildContext) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if ctx.Invoice == nil {
		return nil, fmt.Errorf("verifactu: falta la factura en el contexto de alta")
	}
	return b.build(ctx, b.writeRegistroAlta)
}

// BuildCancellation genera el envelope de anulación (RegistroAnulacion): solo
// identidad de la factura anulada, encadenamiento, sistema informático,
// timestamp y huella.
func (b *RecordXMLBuilder) BuildCancellation(ctx *RecordBuildContext) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return b.build(ctx, b.writeRegistroAnulacion)
}

func validateContext(ctx *RecordBuildContext) error {
	if ctx == nil || ctx.Record == nil || ctx.Company == nil {
		return fmt.Errorf("verifactu: faltan registro o empresa en el contexto")
	}
	return nil
}

func (b *RecordXMLBuilder) build(ctx *RecordBuildContext, writeBody func(*xml.Encoder, *RecordBuildContext) error) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	// Envelope con los tres namespaces declarados en la raíz; los elementos
	// llevan el prefijo en el nombre local para que la salida sea estable.
	root := xml.StartElement{
		Name: xml.Name{Local: "soapenv:Envelope"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:soapenv"}, Value: nsSoapenv},
			{Name: xml.Name{Local: "xmlns:sum"}, Value: nsSum},
			{Name: xml.Name{Local: "xmlns:sum1"}, Value: nsSum1},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	open(enc, "soapenv:Header")
	closeEl(enc, "soapenv:Header")

	open(enc, "soapenv:Body")
	open(enc, "sum:RegFactuSistemaFacturacion")

	// Cabecera: obligado a la emisión (emisor del registro).
	open(enc, "sum:Cabecera")
	open(enc, "sum1:ObligadoEmision")
	writeEl(enc, "sum1:NombreRazon", ctx.Company.LegalName)
	writeEl(enc, "sum1:NIF", ctx.Company.NIF)
	closeEl(enc, "sum1:ObligadoEmision")
	closeEl(enc, "sum:Cabecera")

	open(enc, "sum:RegistroFactura")
	if err := writeBody(enc, ctx); err != nil {
		return nil, err
	}
	closeEl(enc, "sum:RegistroFactura")

	closeEl(enc, "sum:RegFactuSistemaFacturacion")
	closeEl(enc, "soapenv:Body")

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ── RegistroAlta ──────────────────────────────────────────────────────────────

func (b *RecordXMLBuilder) writeRegistroAlta(enc *xml.Encoder, ctx *RecordBuildContext) error {
	rec := ctx.Record

	open(enc, "sum1:RegistroAlta")
	writeEl(enc, "sum1:IDVersion", pkgverifactu.IDVersion)

	open(enc, "sum1:IDFactura")
	writeEl(enc, "sum1:IDEmisorFactura", rec.IssuerNIF)
	writeEl(enc, "sum1:NumSerieFactura", rec.InvoiceNumber)
	writeEl(enc, "sum1:FechaExpedicionFactura", rec.ExpeditionDate)
	closeEl(enc, "sum1:IDFactura")

	writeEl(enc, "sum1:NombreRazonEmisor", ctx.Company.LegalName)
	writeEl(enc, "sum1:TipoFactura", rec.InvoiceType)

	// Rectificativas: modalidad (S/I) y terna de la factura corregida, ambas
	// obligatorias. Un registro malformado falla aquí, no como rechazo AEAT.
	if pkgverifactu.IsRectificative(rec.InvoiceType) {
		if ctx.Rectified == nil {
			return fmt.Errorf("verifactu: rectificativa %s sin referencia a la factura corregida", rec.InvoiceNumber)
		}
		if !pkgverifactu.ValidRectificationType(ctx.Invoice.RectificationType) {
			return fmt.Errorf("verifactu: TipoRectificativa %q fuera del catálogo (S o I)", ctx.Invoice.RectificationType)
		}
		writeEl(enc, "sum1:TipoRectificativa", ctx.Invoice.RectificationType)
		open(enc, "sum1:FacturasRectificadas")
		open(enc, "sum1:IDFacturaRectificada")
		writeEl(enc, "sum1:IDEmisorFactura", ctx.Rectified.IssuerNIF)
		writeEl(enc, "sum1:NumSerieFactura", ctx.Rectified.Number)
		writeEl(enc, "sum1:FechaExpedicionFactura", ctx.Rectified.ExpeditionDate)
		closeEl(enc, "sum1:IDFacturaRectificada")
		closeEl(enc, "sum1:FacturasRectificadas")
	}

	writeEl(enc, "sum1:DescripcionOperacion", operationDescription)

	// Destinatarios solo cuando hay contraparte conocida.
	if ctx.Customer != nil {
		open(enc, "sum1:Destinatarios")
		open(enc, "sum1:IDDestinatario")
		writeEl(enc, "sum1:NombreRazon", ctx.Customer.Name)
		if ctx.Customer.Country == "" || ctx.Customer.Country == "ES" {
			writeEl(enc, "sum1:NIF", ctx.Customer.TaxID)
		} else {
			open(enc, "sum1:IDOtro")
			writeEl(enc, "sum1:CodigoPais", ctx.Customer.Country)
			writeEl(enc, "sum1:IDType", idOtroTypeNoCensal)
			writeEl(enc, "sum1:ID", ctx.Customer.TaxID)
			closeEl(enc, "sum1:IDOtro")
		}
		closeEl(enc, "sum1:IDDestinatario")
		closeEl(enc, "sum1:Destinatarios")
	}

	b.writeDesglose(enc, ctx)

	writeEl(enc, "sum1:CuotaTotal", pkgverifactu.FormatAmount(rec.TaxAmount))
	writeEl(enc, "sum1:ImporteTotal", pkgverifactu.FormatAmount(rec.TotalAmount))

	b.writeEncadenamiento(enc, ctx)
	b.writeSistemaInformatico(enc, ctx)

	writeEl(enc, "sum1:FechaHoraHusoGenRegistro", rec.GeneratedAt)
	writeEl(enc, "sum1:TipoHuella", pkgverifactu.HashAlgorithmCode)
	writeEl(enc, "sum1:Huella", rec.Hash)

	closeEl(enc, "sum1:RegistroAlta")
	return nil
}

// ── RegistroAnulacion ─────────────────────────────────────────────────────────

func (b *RecordXMLBuilder) writeRegistroAnulacion(enc *xml.Encoder, ctx *RecordBuildContext) error {
	rec := ctx.Record

	open(enc, "sum1:RegistroAnulacion")
	writeEl(enc, "sum1:IDVersion", pkgverifactu.IDVersion)

	open(enc, "sum1:IDFactura")
	writeEl(enc, "sum1:IDEmisorFacturaAnulada", rec.IssuerNIF)
	writeEl(enc, "sum1:NumSerieFacturaAnulada", rec.InvoiceNumber)
	writeEl(enc, "sum1:FechaExpedicionFacturaAnulada", rec.ExpeditionDate)
	closeEl(enc, "sum1:IDFactura")

	b.writeEncadenamiento(enc, ctx)
	b.writeSistemaInformatico(enc, ctx)

	writeEl(enc, "sum1:FechaHoraHusoGenRegistro", rec.GeneratedAt)
	writeEl(enc, "sum1:TipoHuella", pkgverifactu.HashAlgorithmCode)
	writeEl(enc, "sum1:Huella", rec.Hash)

	closeEl(enc, "sum1:RegistroAnulacion")
	return nil
}

// ── Bloques comunes ───────────────────────────────────────────────────────────

// taxBucket acumulado de líneas por tipo impositivo.
type taxBucket struct {
	rate            decimal.Decimal
	base            decimal.Decimal
	tax             decimal.Decimal
	surchargeRate   decimal.Decimal
	surchargeAmount decimal.Decimal
	exemptionCode   string
}

// writeDesglose agrupa las líneas por tipo de IVA en orden ascendente de tipo.
// El bucket exento (tipo 0) emite OperacionExenta en lugar de CuotaRepercutida;
// el par de recargo de equivalencia solo se emite cuando no es cero.
func (b *RecordXMLBuilder) writeDesglose(enc *xml.Encoder, ctx *RecordBuildContext) {
	buckets := groupByRate(ctx.Lines)

	open(enc, "sum1:Desglose")
	for _, bk := range buckets {
		open(enc, "sum1:DetalleDesglose")
		writeEl(enc, "sum1:Impuesto", taxCodeIVA)
		writeEl(enc, "sum1:ClaveRegimen", regimeGeneral)
		if bk.rate.IsZero() {
			code := bk.exemptionCode
			if code == "" {
				code = pkgverifactu.ExemptionOther
			}
			writeEl(enc, "sum1:OperacionExenta", code)
			writeEl(enc, "sum1:BaseImponibleOimporteNoSujeto", pkgverifactu.FormatAmount(bk.base))
		} else {
			writeEl(enc, "sum1:CalificacionOperacion", qualificationSubject)
			writeEl(enc, "sum1:TipoImpositivo", pkgverifactu.FormatAmount(bk.rate))
			writeEl(enc, "sum1:BaseImponibleOimporteNoSujeto", pkgverifactu.FormatAmount(bk.base))
			writeEl(enc, "sum1:CuotaRepercutida", pkgverifactu.FormatAmount(bk.tax))
		}
		if !bk.surchargeAmount.IsZero() {
			writeEl(enc, "sum1:TipoRecargoEquivalencia", pkgverifactu.FormatAmount(bk.surchargeRate))
			writeEl(enc, "sum1:CuotaRecargoEquivalencia", pkgverifactu.FormatAmount(bk.surchargeAmount))
		}
		closeEl(enc, "sum1:DetalleDesglose")
	}
	closeEl(enc, "sum1:Desglose")
}

func groupByRate(lines []entity.InvoiceLine) []taxBucket {
	byRate := make(map[string]*taxBucket)
	for _, ln := range lines {
		key := ln.TaxRate.String()
		bk, ok := byRate[key]
		if !ok {
			bk = &taxBucket{rate: ln.TaxRate}
			byRate[key] = bk
		}
		bk.base = bk.base.Add(ln.BaseAmount)
		bk.tax = bk.tax.Add(ln.TaxAmount)
		bk.surchargeAmount = bk.surchargeAmount.Add(ln.SurchargeAmount)
		if bk.surchargeRate.IsZero() && !ln.SurchargeRate.IsZero() {
			bk.surchargeRate = ln.SurchargeRate
		}
		if bk.exemptionCode == "" && ln.ExemptionCode != "" {
			bk.exemptionCode = ln.ExemptionCode
		}
	}

	out := make([]taxBucket, 0, len(byRate))
	for _, bk := range byRate {
		out = append(out, *bk)
	}
	// Orden ascendente por tipo: el agrupado debe ser estable entre ejecuciones.
	sort.Slice(out, func(i, j int) bool {
		return out[i].rate.Cmp(out[j].rate) < 0
	})
	return out
}

// writeEncadenamiento emite el eslabón: primer registro del libro o huella del
// registro anterior.
func (b *RecordXMLBuilder) writeEncadenamiento(enc *xml.Encoder, ctx *RecordBuildContext) {
	open(enc, "sum1:Encadenamiento")
	if ctx.Record.PreviousHash == "" {
		writeEl(enc, "sum1:PrimerRegistro", "S")
	} else {
		open(enc, "sum1:RegistroAnterior")
		writeEl(enc, "sum1:Huella", ctx.Record.PreviousHash)
		closeEl(enc, "sum1:RegistroAnterior")
	}
	closeEl(enc, "sum1:Encadenamiento")
}

func (b *RecordXMLBuilder) writeSistemaInformatico(enc *xml.Encoder, ctx *RecordBuildContext) {
	sw := ctx.Software
	open(enc, "sum1:SistemaInformatico")
	writeEl(enc, "sum1:NombreRazon", sw.VendorName)
	writeEl(enc, "sum1:NIF", sw.VendorNIF)
	writeEl(enc, "sum1:NombreSistemaInformatico", sw.Name)
	writeEl(enc, "sum1:IdSistemaInformatico", sw.ID)
	writeEl(enc, "sum1:Version", sw.Version)
	writeEl(enc, "sum1:NumeroInstalacion", sw.InstallationNumber)
	writeEl(enc, "sum1:TipoUsoPosibleSoloVerifactu", "S")
	writeEl(enc, "sum1:TipoUsoPosibleMultiOT", "S")
	writeEl(enc, "sum1:IndicadorMultiplesOT", "S")
	closeEl(enc, "sum1:SistemaInformatico")
}

// ── Helpers de serialización ──────────────────────────────────────────────────

func open(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

// writeEl escribe <local>value</local>; el encoder escapa el contenido.
func writeEl(enc *xml.Encoder, local, value string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}
