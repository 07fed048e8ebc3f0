package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"google.golang.org/api/option"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Cache        CacheConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	BigQuery     BigQueryConfig
	Services     ServicesConfig
	Inventory    InventoryConfig
	Rollups      RollupsConfig
	Tracing      TracingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Inventory.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BACKOFFICE_APP_ENV" required:"true"`
	Port         string `envconfig:"BACKOFFICE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BACKOFFICE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BACKOFFICE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BACKOFFICE_LOG_WARN_STACK" default:"false"`
	// ShutdownTimeout bounds how long HTTP servers drain on exit.
	ShutdownTimeout time.Duration `envconfig:"BACKOFFICE_SHUTDOWN_TIMEOUT" default:"15s"`
	CORSOrigins     []string      `envconfig:"BACKOFFICE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BACKOFFICE_DB_DSN"`
	Driver string `envconfig:"BACKOFFICE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BACKOFFICE_DB_HOST"`
	Port     int    `envconfig:"BACKOFFICE_DB_PORT" default:"5432"`
	User     string `envconfig:"BACKOFFICE_DB_USER"`
	Password string `envconfig:"BACKOFFICE_DB_PASSWORD"`
	Name     string `envconfig:"BACKOFFICE_DB_NAME"`
	SSLMode  string `envconfig:"BACKOFFICE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BACKOFFICE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BACKOFFICE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"BACKOFFICE_DB_SLOW_QUERY" default:"500ms"`
}

// UsesSQLite reports whether the sqlite driver is selected.
func (db DBConfig) UsesSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BACKOFFICE_REDIS_URL"`
	Address      string        `envconfig:"BACKOFFICE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"BACKOFFICE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BACKOFFICE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BACKOFFICE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BACKOFFICE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BACKOFFICE_REDIS_WRITE_TIMEOUT" default:"5s"`
	// KeyPrefix namespaces every key so services can share one database.
	KeyPrefix string `envconfig:"BACKOFFICE_REDIS_KEY_PREFIX" default:"bo"`
}

type CacheConfig struct {
	Enabled bool          `envconfig:"BACKOFFICE_CACHE_ENABLED" default:"true"`
	TTL     time.Duration `envconfig:"BACKOFFICE_CACHE_TTL" default:"1h"`
}

type EventingConfig struct {
	Driver         string        `envconfig:"BACKOFFICE_EVENTING_DRIVER" default:"pubsub"`
	IdempotencyTTL time.Duration `envconfig:"BACKOFFICE_EVENTING_IDEMPOTENCY_TTL" default:"72h"`

	OrdersTopic    string `envconfig:"BACKOFFICE_EVENTING_ORDERS_TOPIC" default:"orders"`
	ProductsTopic  string `envconfig:"BACKOFFICE_EVENTING_PRODUCTS_TOPIC" default:"products"`
	AnalyticsTopic string `envconfig:"BACKOFFICE_EVENTING_ANALYTICS_TOPIC" default:"analytics"`
	AlertsTopic    string `envconfig:"BACKOFFICE_EVENTING_ALERTS_TOPIC" default:"alerts"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Driver)) {
	case EventingDriverPubSub, EventingDriverKafka, EventingDriverMemory:
	default:
		return fmt.Errorf("%s must be one of pubsub, kafka, memory (got %q)", EnvEventingDriver, e.Driver)
	}
	for env, topic := range map[string]string{
		EnvOrdersTopic:    e.OrdersTopic,
		EnvProductsTopic:  e.ProductsTopic,
		EnvAnalyticsTopic: e.AnalyticsTopic,
		EnvAlertsTopic:    e.AlertsTopic,
	} {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("%s is required", env)
		}
	}
	return nil
}

// DriverName returns the normalized eventing driver.
func (e EventingConfig) DriverName() string {
	return strings.ToLower(strings.TrimSpace(e.Driver))
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BACKOFFICE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BACKOFFICE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BACKOFFICE_GOOGLE_APPLICATION_CREDENTIALS"`
}

// ClientOptions returns the credential options for Google Cloud clients.
// Inline JSON wins over a credentials file; with neither, the default
// application credentials apply.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(g.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(g.CredentialsJSON)))
	case strings.TrimSpace(g.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(g.ApplicationCredentials))
	}
	return opts
}

// PubSubConfig names the subscriptions each process reads from. Only the
// subscriptions a process consumes need to be set.
type PubSubConfig struct {
	OrderEventsSubscription     string `envconfig:"BACKOFFICE_PUBSUB_ORDER_EVENTS_SUBSCRIPTION"`
	ProductEventsSubscription   string `envconfig:"BACKOFFICE_PUBSUB_PRODUCT_EVENTS_SUBSCRIPTION"`
	AnalyticsEventsSubscription string `envconfig:"BACKOFFICE_PUBSUB_ANALYTICS_EVENTS_SUBSCRIPTION"`
	AlertEventsSubscription     string `envconfig:"BACKOFFICE_PUBSUB_ALERT_EVENTS_SUBSCRIPTION"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"BACKOFFICE_KAFKA_BROKERS" default:"localhost:9092"`
	GroupPrefix  string        `envconfig:"BACKOFFICE_KAFKA_GROUP_PREFIX" default:"backoffice"`
	WriteTimeout time.Duration `envconfig:"BACKOFFICE_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type BigQueryConfig struct {
	Dataset              string `envconfig:"BACKOFFICE_BIGQUERY_DATASET"`
	AnalyticsEventsTable string `envconfig:"BACKOFFICE_BIGQUERY_ANALYTICS_TABLE" default:"analytics_events"`
	// CreateMissingTables creates the events table on startup instead of
	// failing when it does not exist. The dataset must exist either way.
	CreateMissingTables bool `envconfig:"BACKOFFICE_BIGQUERY_CREATE_TABLES" default:"false"`
}

// Enabled reports whether analytics events should be mirrored to BigQuery.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}

// ServicesConfig holds the peer service base URLs used for synchronous calls.
type ServicesConfig struct {
	ProductServiceURL string        `envconfig:"BACKOFFICE_PRODUCT_SERVICE_URL" default:"http://localhost:8082"`
	HTTPTimeout       time.Duration `envconfig:"BACKOFFICE_SERVICES_HTTP_TIMEOUT" default:"5s"`
}

type InventoryConfig struct {
	Mode              string `envconfig:"BACKOFFICE_INVENTORY_MODE" default:"inline"`
	LowStockThreshold int    `envconfig:"BACKOFFICE_INVENTORY_LOW_STOCK_THRESHOLD" default:"10"`
}

func (i InventoryConfig) validate() error {
	switch i.ModeName() {
	case InventoryModeInline, InventoryModeAsync:
		return nil
	}
	return fmt.Errorf("%s must be inline or async (got %q)", EnvInventoryMode, i.Mode)
}

// ModeName returns the normalized inventory mode.
func (i InventoryConfig) ModeName() string {
	return strings.ToLower(strings.TrimSpace(i.Mode))
}

// IsAsync reports whether stock is reserved by the reconciliation consumer.
func (i InventoryConfig) IsAsync() bool {
	return i.ModeName() == InventoryModeAsync
}

// RollupsConfig controls the periodic sales rollup refresh in the order
// service. A zero interval disables it.
type RollupsConfig struct {
	RefreshInterval time.Duration `envconfig:"BACKOFFICE_ROLLUP_REFRESH_INTERVAL" default:"5m"`
}

type TracingConfig struct {
	Enabled      bool    `envconfig:"BACKOFFICE_TRACING_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"BACKOFFICE_TRACING_OTLP_ENDPOINT" default:"localhost:4318"`
	Insecure     bool    `envconfig:"BACKOFFICE_TRACING_INSECURE" default:"true"`
	SampleRatio  float64 `envconfig:"BACKOFFICE_TRACING_SAMPLE_RATIO" default:"1"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BACKOFFICE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.UsesSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartsEnvVars {
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
