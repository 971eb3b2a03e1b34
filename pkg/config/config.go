package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Gateway   GatewayConfig
	Webhook   WebhookConfig
	Admin     AdminConfig
	Checkout  CheckoutConfig
	Mail      MailConfig
	Sweeps    SweepsConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	BigQuery  BigQueryConfig
	MailRelay MailRelayConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDA_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"VENDA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN         string `envconfig:"VENDA_DB_DSN"`
	Driver      string `envconfig:"VENDA_DB_DRIVER" default:"postgres"`
	AutoMigrate bool   `envconfig:"VENDA_DB_AUTO_MIGRATE" default:"false"`

	Host     string `envconfig:"VENDA_DB_HOST"`
	Port     int    `envconfig:"VENDA_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDA_DB_USER"`
	Password string `envconfig:"VENDA_DB_PASSWORD"`
	Name     string `envconfig:"VENDA_DB_NAME"`
	SSLMode  string `envconfig:"VENDA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the store runs on the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDA_REDIS_URL"`
	Address      string        `envconfig:"VENDA_REDIS_ADDR"`
	Password     string        `envconfig:"VENDA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"VENDA_JWT_SECRET"`
	Issuer string `envconfig:"VENDA_JWT_ISSUER"`
}

type GatewayConfig struct {
	BaseURL     string        `envconfig:"VENDA_GATEWAY_BASE_URL" default:"https://api.mercadopago.com"`
	AccessToken string        `envconfig:"VENDA_GATEWAY_ACCESS_TOKEN"`
	Name        string        `envconfig:"VENDA_GATEWAY_NAME" default:"mercadopago"`
	Timeout     time.Duration `envconfig:"VENDA_GATEWAY_TIMEOUT" default:"10s"`
	MaxAttempts int           `envconfig:"VENDA_GATEWAY_MAX_ATTEMPTS" default:"3"`
	BaseBackoff time.Duration `envconfig:"VENDA_GATEWAY_BASE_BACKOFF" default:"300ms"`
}

type WebhookConfig struct {
	Secret    string `envconfig:"VENDA_WEBHOOK_SECRET"`
	PublicURL string `envconfig:"VENDA_WEBHOOK_PUBLIC_URL"`
}

// NotificationURL returns the callback URL handed to the gateway, carrying the
// shared secret when one is configured.
func (w WebhookConfig) NotificationURL() string {
	base := strings.TrimSpace(w.PublicURL)
	if base == "" {
		return ""
	}
	if w.Secret == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("secret", w.Secret)
	u.RawQuery = q.Encode()
	return u.String()
}

type AdminConfig struct {
	Secret string `envconfig:"VENDA_ADMIN_SECRET"`
}

type CheckoutConfig struct {
	FrontendURL    string        `envconfig:"VENDA_FRONTEND_URL"`
	DevOrigins     []string      `envconfig:"VENDA_DEV_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	IdempotencyTTL time.Duration `envconfig:"VENDA_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	StatementName  string        `envconfig:"VENDA_CHECKOUT_STATEMENT_NAME"`
}

// AllowedOrigins returns the origins permitted on the public checkout surface.
func (c CheckoutConfig) AllowedOrigins() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(c.DevOrigins)+1)
	add := func(origin string) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			return
		}
		if _, ok := seen[origin]; ok {
			return
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	add(c.FrontendURL)
	for _, origin := range c.DevOrigins {
		add(origin)
	}
	return out
}

type MailConfig struct {
	From       string `envconfig:"VENDA_MAIL_FROM" default:"Venda de Projetos <no-reply@vendaprojetos.com.br>"`
	ReplyTo    string `envconfig:"VENDA_MAIL_REPLY_TO"`
	SupportURL string `envconfig:"VENDA_MAIL_SUPPORT_URL"`
}

type SweepsConfig struct {
	Interval           time.Duration `envconfig:"VENDA_SWEEP_INTERVAL" default:"5m"`
	ReconcileMinAge    time.Duration `envconfig:"VENDA_RECONCILE_MIN_AGE" default:"10m"`
	ReconcileBatchSize int           `envconfig:"VENDA_RECONCILE_BATCH_SIZE" default:"25"`
	PaidEmailBatchSize int           `envconfig:"VENDA_PAID_EMAIL_BATCH_SIZE" default:"25"`
	LockTTL            time.Duration `envconfig:"VENDA_SWEEP_LOCK_TTL" default:"4m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VENDA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	MailTopic string `envconfig:"VENDA_PUBSUB_MAIL_TOPIC" default:"venda-mail-queue"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"VENDA_BIGQUERY_DATASET"`
	TransitionsTable string `envconfig:"VENDA_BIGQUERY_TRANSITIONS_TABLE" default:"order_transitions"`
}

// Enabled reports whether transition analytics should be written.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}

type MailRelayConfig struct {
	BatchSize      int `envconfig:"VENDA_MAIL_RELAY_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDA_MAIL_RELAY_POLL_MS" default:"1000"`
	MaxAttempts    int `envconfig:"VENDA_MAIL_RELAY_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:venda.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
