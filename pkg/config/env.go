package config

const (
	EnvPrefix = "PDA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "PDA_APP_ENV"
	EnvPort     = "PDA_APP_PORT"
	EnvLogLevel = "PDA_LOG_LEVEL"

	EnvDBDSN  = "PDA_DB_DSN"
	EnvDBHost = "PDA_DB_HOST"
	EnvDBUser = "PDA_DB_USER"
	EnvDBName = "PDA_DB_NAME"

	EnvRedisURL  = "PDA_REDIS_URL"
	EnvUseSQLite = "PDA_USE_SQLITE"

	EnvGCPProjectID          = "PDA_GCP_PROJECT_ID"
	EnvPubSubDomainTopic     = "PDA_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotifySub       = "PDA_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvOutboxMaxAttempts     = "PDA_OUTBOX_MAX_ATTEMPTS"
	EnvAssignmentMaxOpen     = "PDA_ASSIGNMENT_MAX_OPEN_ORDERS"
	EnvVerificationOTPTTL    = "PDA_VERIFICATION_OTP_TTL"
	EnvVerificationGPSTol    = "PDA_VERIFICATION_GPS_TOLERANCE_METERS"
	EnvCommissionGracePeriod = "PDA_COMMISSION_GRACE_PERIOD"
	EnvWorkerID              = "PDA_WORKER_ID"

	EnvCommissionPlatformMarginRate    = "PDA_COMMISSION_PLATFORM_MARGIN_RATE"
	EnvCommissionSystemMaintenanceRate = "PDA_COMMISSION_SYSTEM_MAINTENANCE_RATE"
	EnvCommissionFastDeliveryAgentRate = "PDA_COMMISSION_FAST_DELIVERY_AGENT_RATE"
	EnvCommissionPSMHelpedRate         = "PDA_COMMISSION_PSM_HELPED_RATE"
	EnvCommissionPSMReceivedRate       = "PDA_COMMISSION_PSM_RECEIVED_RATE"
	EnvCommissionPickupAgentRate       = "PDA_COMMISSION_PICKUP_DELIVERY_AGENT_RATE"
	EnvCommissionHomeDeliveryFeeRate   = "PDA_COMMISSION_HOME_DELIVERY_FEE_RATE"
	EnvCommissionReferralRate          = "PDA_COMMISSION_REFERRAL_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
