package verifactu

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	"github.com/xcruz-intermega/factu365-sub001/pkg/config"
	"github.com/xcruz-intermega/factu365-sub001/pkg/logger"
	pkgverifactu "github.com/xcruz-intermega/factu365-sub001/pkg/verifactu"
)

// Submitter define el puerto de entrega de registros a la AEAT.
// La implementación concreta usa HTTPS con TLS mutuo; para tests se inyecta
// un doble.
type Submitter interface {
	Submit(ctx context.Context, rec *entity.InvoicingRecord, certPath, keyPath string) (*entity.AeatSubmission, error)
}

// Client entrega registros de facturación al servicio de suministro de la AEAT
// con TLS mutuo (el certificado de cliente es la identidad legal del emisor).
//
// Cada llamada a Submit crea una fila de intento ANTES de tocar la red: un
// crash a mitad de envío deja rastro de auditoría. El intento y el registro se
// actualizan con el desenlace; solo los fallos de transporte devuelven error
// (son los únicos reintentables por el orquestador).
type Client struct {
	cfg         config.VerifactuConfig
	submissions repository.AeatSubmissionRepository
	records     repository.InvoicingRecordRepository
	log         *logger.Logger

	// httpClient inyectable en tests; en producción se construye por llamada
	// con el par certificado/clave extraído para ese envío.
	httpClient *http.Client
}

// NewClient crea el cliente de envío.
func NewClient(cfg config.VerifactuConfig, submissions repository.AeatSubmissionRepository, records repository.InvoicingRecordRepository, log *logger.Logger) *Client {
	return &Client{cfg: cfg, submissions: submissions, records: records, log: log}
}

// endpointFor resuelve la URL según tipo de registro y entorno; los overrides
// de configuración permiten apuntar a un servidor local.
func (c *Client) endpointFor(recordType string) string {
	if recordType == entity.RecordTypeAnulacion {
		if c.cfg.CancellationURL != "" {
			return c.cfg.CancellationURL
		}
		return pkgverifactu.CancellationURL(c.cfg.Environment)
	}
	if c.cfg.RegistrationURL != "" {
		return c.cfg.RegistrationURL
	}
	return pkgverifactu.RegistrationURL(c.cfg.Environment)
}

// Submit envía el XML del registro y persiste el intento y el desenlace.
// certPath/keyPath son los ficheros PEM temporales extraídos del certificado
// activo; el llamante es responsable de su limpieza.
func (c *Client) Submit(ctx context.Context, rec *entity.InvoicingRecord, certPath, keyPath string) (*entity.AeatSubmission, error) {
	endpoint := c.endpointFor(rec.RecordType)

	prior, err := c.submissions.CountByRecord(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("verifactu: contar intentos previos: %w", err)
	}

	attempt := &entity.AeatSubmission{
		ID:            uuid.NewString(),
		RecordID:      rec.ID,
		AttemptNumber: prior + 1,
		RequestXML:    rec.XMLContent,
		Status:        entity.SubmissionStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.submissions.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("verifactu: crear intento: %w", err)
	}

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient, err = c.buildHTTPClient(certPath, keyPath)
		if err != nil {
			attempt.Status = entity.SubmissionStatusError
			attempt.ErrorCode = entity.SubmissionErrConnection
			attempt.ErrorDescription = err.Error()
			c.finish(ctx, rec, attempt)
			return attempt, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(rec.XMLContent))
	if err != nil {
		return nil, fmt.Errorf("verifactu: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("SOAPAction", "")

	resp, err := httpClient.Do(req)
	if err != nil {
		// Fallo de transporte: único desenlace reintentable.
		attempt.Status = entity.SubmissionStatusError
		attempt.ErrorCode = entity.SubmissionErrConnection
		attempt.ErrorDescription = err.Error()
		c.finish(ctx, rec, attempt)
		return attempt, fmt.Errorf("verifactu: envío a la AEAT: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		attempt.Status = entity.SubmissionStatusError
		attempt.ErrorCode = entity.SubmissionErrConnection
		attempt.ErrorDescription = err.Error()
		c.finish(ctx, rec, attempt)
		return attempt, fmt.Errorf("verifactu: leer respuesta: %w", err)
	}

	attempt.HTTPStatus = resp.StatusCode
	attempt.ResponseXML = string(rawBody)
	c.parseResponse(attempt, rawBody)
	c.finish(ctx, rec, attempt)

	c.log.Info().
		Str("record_id", rec.ID).
		Int("attempt", attempt.AttemptNumber).
		Str("status", attempt.Status).
		Str("csv", attempt.CSV).
		Msg("envío VERI*FACTU completado")
	return attempt, nil
}

// buildHTTPClient construye el cliente HTTPS con el certificado de cliente
// (TLS mutuo) y los timeouts de conexión y totales configurados.
func (c *Client) buildHTTPClient(certPath, keyPath string) (*http.Client, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("verifactu: cargar par certificado/clave: %w", err)
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		DialContext: (&net.Dialer{
			Timeout: c.cfg.ConnectTimeout,
		}).DialContext,
	}
	return &http.Client{Transport: transport, Timeout: c.cfg.TotalTimeout}, nil
}

// parseResponse interpreta la respuesta de la AEAT sobre el intento.
// Una respuesta no parseable es un error, no un éxito: un 200 ilegible no
// puede tratarse como aceptación.
func (c *Client) parseResponse(attempt *entity.AeatSubmission, rawBody []byte) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		attempt.Status = entity.SubmissionStatusError
		attempt.ErrorCode = entity.SubmissionErrInvalidResponse
		attempt.ErrorDescription = "respuesta no parseable como XML: " + err.Error()
		return
	}

	estado := findText(doc.Root(), "EstadoEnvio")
	switch estado {
	case pkgverifactu.AeatEstadoCorrecto:
		attempt.Status = entity.SubmissionStatusAccepted
	case pkgverifactu.AeatEstadoParcialmenteCorrecto:
		attempt.Status = entity.SubmissionStatusPartiallyAccepted
	case pkgverifactu.AeatEstadoIncorrecto:
		attempt.Status = entity.SubmissionStatusRejected
	default:
		attempt.Status = entity.SubmissionStatusError
		attempt.ErrorCode = entity.SubmissionErrInvalidResponse
		attempt.ErrorDescription = "EstadoEnvio ausente o desconocido: " + estado
	}

	attempt.CSV = findText(doc.Root(), "CSV")
	if code := findText(doc.Root(), "CodigoErrorRegistro"); code != "" {
		attempt.ErrorCode = code
		attempt.ErrorDescription = findText(doc.Root(), "DescripcionErrorRegistro")
	}
}

// finish persiste el intento y propaga el desenlace al registro.
// Mapeo intento -> registro: accepted/partially_accepted -> accepted,
// rejected -> rejected, error -> error, pending -> submitted.
func (c *Client) finish(ctx context.Context, rec *entity.InvoicingRecord, attempt *entity.AeatSubmission) {
	if err := c.submissions.Update(ctx, attempt); err != nil {
		c.log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("no se pudo persistir el intento")
	}

	switch attempt.Status {
	case entity.SubmissionStatusAccepted, entity.SubmissionStatusPartiallyAccepted:
		rec.SubmissionStatus = entity.RecordStatusAccepted
	case entity.SubmissionStatusRejected:
		rec.SubmissionStatus = entity.RecordStatusRejected
	case entity.SubmissionStatusError:
		rec.SubmissionStatus = entity.RecordStatusError
	default:
		rec.SubmissionStatus = entity.RecordStatusSubmitted
	}
	rec.CSV = attempt.CSV
	rec.ErrorMessage = joinError(attempt.ErrorCode, attempt.ErrorDescription)

	if err := c.records.UpdateSubmissionState(ctx, rec); err != nil {
		c.log.Error().Err(err).Str("record_id", rec.ID).Msg("no se pudo actualizar el registro")
	}
}

func joinError(code, desc string) string {
	switch {
	case code == "" && desc == "":
		return ""
	case desc == "":
		return code
	case code == "":
		return desc
	}
	return code + ": " + desc
}

// findText busca en profundidad el primer elemento con ese nombre local,
// ignorando prefijos de namespace (la AEAT varía el prefijo entre entornos).
func findText(el *etree.Element, tag string) string {
	if el == nil {
		return ""
	}
	if el.Tag == tag {
		return strings.TrimSpace(el.Text())
	}
	for _, child := range el.ChildElements() {
		if v := findText(child, tag); v != "" {
			return v
		}
	}
	return ""
}
