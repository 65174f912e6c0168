package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays values from environment variables. Only variables that
// are present are applied. APP_ENV=production turns on secure cookies unless
// COOKIE_SECURE says otherwise. Malformed numbers, booleans or durations
// panic, like malformed JSON does.
func parseEnv(config *Config) {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				panic(fmt.Errorf("env %s: %w", name, err))
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				panic(fmt.Errorf("env %s: %w", name, err))
			}
			*dst = d
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = nil
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					*dst = append(*dst, item)
				}
			}
		}
	}

	str("HTTP_ADDRESS", &config.EndpointAddrHTTP)
	str("GRPC_ADDRESS", &config.EndpointAddrGRPC)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("JWT_ACCESS_SECRET", &config.AccessTokenSecret)
	str("JWT_REFRESH_SECRET", &config.RefreshTokenSecret)
	str("JWT_PASSWORD_SECRET", &config.PasswordTokenSecret)
	dur("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	dur("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)
	dur("PASSWORD_TOKEN_TTL", &config.PasswordTokenValidityDuration)
	str("FRONTEND_URL", &config.FrontendURL)
	str("COOKIE_SAMESITE", &config.CookieSameSite)
	str("REDIS_ADDR", &config.RedisAddr)
	str("REDIS_PASSWORD", &config.RedisPassword)
	num("REDIS_DB", &config.RedisDB)
	str("SMTP_HOST", &config.SMTPHost)
	num("SMTP_PORT", &config.SMTPPort)
	str("SMTP_USER", &config.SMTPUser)
	str("SMTP_PASSWORD", &config.SMTPPassword)
	str("MAIL_FROM", &config.MailFrom)
	str("STORAGE_BACKEND", &config.StorageBackend)
	str("UPLOAD_DIR", &config.UploadDir)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("S3_PUBLIC_URL", &config.S3PublicURL)
	str("ADMIN_EMAIL", &config.AdminEmail)
	str("ADMIN_PASSWORD", &config.AdminPassword)
	num("LOGIN_RATE_LIMIT", &config.LoginRateLimit)
	list("TRUSTED_PROXIES", &config.TrustedProxies)
	str("LOG_LEVEL", &config.LogLevel)

	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		config.CookieSecure = true
	}
	if v, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			panic(fmt.Errorf("env COOKIE_SECURE: %w", err))
		}
		config.CookieSecure = b
	}
}
