package config

// Env var names shared with tests and deployment manifests.
const (
	EnvAppEnv   = "ALIF_APP_ENV"
	EnvPort     = "ALIF_APP_PORT"
	EnvLogLevel = "ALIF_LOG_LEVEL"

	EnvRedisURL = "ALIF_REDIS_URL"

	EnvJWTSecret  = "ALIF_JWT_SECRET"
	EnvJWTIssuer  = "ALIF_JWT_ISSUER"
	EnvJWTExpMins = "ALIF_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey        = "ALIF_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "ALIF_STRIPE_WEBHOOK_SECRET"

	EnvGCPProjectID     = "ALIF_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "ALIF_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "ALIF_PUBSUB_DOMAIN_SUBSCRIPTION"

	EnvFeesFlatRate = "ALIF_FEES_FLAT_RATE_PERCENT"

	EnvOrdersUnpaidExpiry = "ALIF_ORDERS_UNPAID_EXPIRY"
)
