package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultProvider  = "anthropic"
	DefaultMaxTokens = 4096

	DefaultMaxIterations = 10
	DefaultDispatchMode  = "all"
	DefaultModelTimeout  = 120 // seconds
	DefaultToolTimeout   = 60  // seconds
	DefaultAgentTimeout  = 300 // seconds

	DefaultHTTPGetLimit   = 1000
	DefaultHTTPGetTimeout = 30 // seconds

	DefaultDatabaseMaxConns = 4
	DefaultMaxQueryRows     = 200

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchTimeout    = 30

	DefaultMaxPromptLength = 8000

	DefaultInputPricePerMTok  = 3.0
	DefaultOutputPricePerMTok = 15.0

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "secret", "private key",
	"access token", "api key",
}

var DefaultESAllowedPatterns = []string{"*"}
