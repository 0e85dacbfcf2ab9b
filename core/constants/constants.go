package constants

// Database pool defaults
const (
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
	DatabaseSSLMode         = "disable"
)

// Booking engine
const (
	ReserveTxTimeoutSeconds = 10
	CancelTokenBytes        = 32
	PublicIDLength          = 12
)

// Worker defaults
const (
	WorkerMaxRetries          = 5
	WorkerLocalAttempts       = 3
	WorkerBackoffBaseMillis   = 1000
	WorkerPollBatch           = 5
	WorkerPollWaitSeconds     = 20
	WorkerShutdownTimeoutSecs = 30
)

// Rate limiting (public signup route)
const (
	RateLimitRequests      = 10
	RateLimitWindowSeconds = 60
)
