package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Verifactu VerifactuConfig
}

// VerifactuConfig configuración del canal de remisión VERI*FACTU (AEAT, España).
type VerifactuConfig struct {
	Environment string // "sandbox" = pruebas AEAT, "production" = real

	// Identificación del sistema informático de facturación (bloque SistemaInformatico,
	// obligatorio en todo registro remitido).
	SoftwareName       string
	SoftwareID         string
	SoftwareVersion    string
	VendorName         string
	VendorNIF          string
	InstallationNumber string

	// Almacén de certificados: directorio para los bundles cifrados y clave
	// simétrica con la que se cifran bundle y contraseña en reposo.
	CertStoreDir string
	CertStoreKey string

	// Política de reintentos del orquestador de envío.
	MaxAttempts    int
	RetryBackoff   []time.Duration
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration

	// Overrides de endpoint para entornos locales (vacío = endpoint oficial AEAT).
	RegistrationURL string
	CancellationURL string
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo .env).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, VERIFACTU_ENVIRONMENT, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "factu365"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "factu365"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "factu365"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Verifactu: VerifactuConfig{
			Environment:        getString(v, "VERIFACTU_ENVIRONMENT", "sandbox"),
			SoftwareName:       getString(v, "VERIFACTU_SOFTWARE_NAME", "Factu365"),
			SoftwareID:         getString(v, "VERIFACTU_SOFTWARE_ID", "F3"),
			SoftwareVersion:    getString(v, "VERIFACTU_SOFTWARE_VERSION", "1.0.0"),
			VendorName:         getString(v, "VERIFACTU_VENDOR_NAME", "Intermega Cruz SL"),
			VendorNIF:          getString(v, "VERIFACTU_VENDOR_NIF", ""),
			InstallationNumber: getString(v, "VERIFACTU_INSTALLATION_NUMBER", "1"),
			CertStoreDir:       getString(v, "VERIFACTU_CERT_DIR", "/var/lib/factu365/certs"),
			CertStoreKey:       getString(v, "VERIFACTU_CERT_KEY", ""),
			MaxAttempts:        getInt(v, "VERIFACTU_MAX_ATTEMPTS", 3),
			RetryBackoff:       parseBackoff(getString(v, "VERIFACTU_RETRY_BACKOFF_MINUTES", "1,5,15")),
			ConnectTimeout:     time.Duration(getInt(v, "VERIFACTU_CONNECT_TIMEOUT_SECONDS", 10)) * time.Second,
			TotalTimeout:       time.Duration(getInt(v, "VERIFACTU_TOTAL_TIMEOUT_SECONDS", 30)) * time.Second,
			RegistrationURL:    getString(v, "VERIFACTU_REGISTRATION_URL", ""),
			CancellationURL:    getString(v, "VERIFACTU_CANCELLATION_URL", ""),
		},
	}

	return cfg, nil
}

// parseBackoff convierte "1,5,15" (minutos) en la lista de esperas entre intentos.
func parseBackoff(s string) []time.Duration {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			continue
		}
		out = append(out, time.Duration(n)*time.Minute)
	}
	if len(out) == 0 {
		out = []time.Duration{1 * time.Minute, 5 * time.Minute, 15 * time.Minute}
	}
	return out
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}
