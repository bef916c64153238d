package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Commission   CommissionConfig
	Assignment   AssignmentConfig
	Verification VerificationConfig
	Cron         CronConfig
	Notify       NotificationsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PDA_APP_ENV" required:"true"`
	Port         string `envconfig:"PDA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PDA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PDA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PDA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PDA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PDA_DB_DSN"`
	Driver string `envconfig:"PDA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PDA_DB_HOST"`
	LegacyPort     int    `envconfig:"PDA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PDA_DB_USER"`
	LegacyPassword string `envconfig:"PDA_DB_PASSWORD"`
	LegacyName     string `envconfig:"PDA_DB_NAME"`
	LegacySSLMode  string `envconfig:"PDA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PDA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PDA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PDA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PDA_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"PDA_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PDA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PDA_REDIS_ADDR"`
	Password     string        `envconfig:"PDA_REDIS_PASSWORD"`
	DB           int           `envconfig:"PDA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PDA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PDA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PDA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PDA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PDA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PDA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PDA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"PDA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	IdempotencyLease     time.Duration `envconfig:"PDA_EVENTING_IDEMPOTENCY_LEASE" default:"5m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PDA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"PDA_PUBSUB_DOMAIN_TOPIC" default:"pda-domain-events"`
	NotificationSubscription string `envconfig:"PDA_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"pda-notification-worker"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"PDA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PDA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PDA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"PDA_OUTBOX_RETENTION" default:"720h"`
}

// CommissionConfig holds the fallback rate table, expressed as fractions
// (0.21 == 21%). Rows in commission_rates override these per key.
type CommissionConfig struct {
	PlatformMarginRate              float64       `envconfig:"PDA_COMMISSION_PLATFORM_MARGIN_RATE" default:"0.21"`
	SystemMaintenanceRate           float64       `envconfig:"PDA_COMMISSION_SYSTEM_MAINTENANCE_RATE" default:"0.01"`
	FastDeliveryAgentRate           float64       `envconfig:"PDA_COMMISSION_FAST_DELIVERY_AGENT_RATE" default:"0.70"`
	PSMHelpedRate                   float64       `envconfig:"PDA_COMMISSION_PSM_HELPED_RATE" default:"0.25"`
	PSMReceivedRate                 float64       `envconfig:"PDA_COMMISSION_PSM_RECEIVED_RATE" default:"0.15"`
	PickupDeliveryAgentRate         float64       `envconfig:"PDA_COMMISSION_PICKUP_DELIVERY_AGENT_RATE" default:"0.70"`
	HomeDeliveryFeeRate             float64       `envconfig:"PDA_COMMISSION_HOME_DELIVERY_FEE_RATE" default:"0.06"`
	ReferralRate                    float64       `envconfig:"PDA_COMMISSION_REFERRAL_RATE" default:"0"`
	GracePeriod                     time.Duration `envconfig:"PDA_COMMISSION_GRACE_PERIOD" default:"5m"`
	ReleaseSellerPayoutOnPSMDeposit bool          `envconfig:"PDA_COMMISSION_RELEASE_SELLER_PAYOUT_ON_PSM_DEPOSIT" default:"true"`
}

func (c CommissionConfig) validate() error {
	rates := map[string]float64{
		EnvCommissionPlatformMarginRate:    c.PlatformMarginRate,
		EnvCommissionSystemMaintenanceRate: c.SystemMaintenanceRate,
		EnvCommissionFastDeliveryAgentRate: c.FastDeliveryAgentRate,
		EnvCommissionPSMHelpedRate:         c.PSMHelpedRate,
		EnvCommissionPSMReceivedRate:       c.PSMReceivedRate,
		EnvCommissionPickupAgentRate:       c.PickupDeliveryAgentRate,
		EnvCommissionHomeDeliveryFeeRate:   c.HomeDeliveryFeeRate,
		EnvCommissionReferralRate:          c.ReferralRate,
	}
	for key, rate := range rates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", key, rate)
		}
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("%s must not be negative", EnvCommissionGracePeriod)
	}
	return nil
}

type AssignmentConfig struct {
	MaxOpenOrders      int `envconfig:"PDA_ASSIGNMENT_MAX_OPEN_ORDERS" default:"5"`
	DeliveryCodeLength int `envconfig:"PDA_ASSIGNMENT_DELIVERY_CODE_LENGTH" default:"6"`
}

type VerificationConfig struct {
	OTPTTL             time.Duration `envconfig:"PDA_VERIFICATION_OTP_TTL" default:"30m"`
	OTPAttemptLimit    int           `envconfig:"PDA_VERIFICATION_OTP_ATTEMPT_LIMIT" default:"5"`
	OTPAttemptWindow   time.Duration `envconfig:"PDA_VERIFICATION_OTP_ATTEMPT_WINDOW" default:"15m"`
	GPSToleranceMeters float64       `envconfig:"PDA_VERIFICATION_GPS_TOLERANCE_METERS" default:"100"`

	ArgonMemoryKB    int `envconfig:"PDA_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int `envconfig:"PDA_ARGON_TIME" default:"2"`
	ArgonParallelism int `envconfig:"PDA_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"PDA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PDA_ARGON_KEY_LEN" default:"32"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"PDA_CRON_INTERVAL" default:"1m"`
	LockTTL           time.Duration `envconfig:"PDA_CRON_LOCK_TTL" default:"55s"`
	JobTimeout        time.Duration `envconfig:"PDA_CRON_JOB_TIMEOUT" default:"50s"`
	ApprovalBatchSize int           `envconfig:"PDA_CRON_APPROVAL_BATCH_SIZE" default:"200"`
	OTPRetention      time.Duration `envconfig:"PDA_CRON_OTP_RETENTION" default:"24h"`
	NotifyRetention   time.Duration `envconfig:"PDA_CRON_NOTIFICATION_RETENTION" default:"2160h"`
}

// NotificationsConfig lists who receives dispute escalations.
type NotificationsConfig struct {
	AdminUserIDs []string `envconfig:"PDA_NOTIFY_ADMIN_USER_IDS"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:pda.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
