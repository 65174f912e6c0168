package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/ulpt/internal/flagx"
	"github.com/dmitrijs2005/ulpt/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP              string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC              string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                   string         `json:"database_dsn"`
	AccessTokenSecret             string         `json:"access_token_secret"`
	RefreshTokenSecret            string         `json:"refresh_token_secret"`
	PasswordTokenSecret           string         `json:"password_token_secret"`
	AccessTokenValidityDuration   timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration  timex.Duration `json:"refresh_token_validity_duration"`
	PasswordTokenValidityDuration timex.Duration `json:"password_token_validity_duration"`
	FrontendURL                   string         `json:"frontend_url"`
	CookieSecure                  bool           `json:"cookie_secure"`
	CookieSameSite                string         `json:"cookie_same_site"`
	RedisAddr                     string         `json:"redis_addr"`
	RedisPassword                 string         `json:"redis_password"`
	RedisDB                       int            `json:"redis_db"`
	SMTPHost                      string         `json:"smtp_host"`
	SMTPPort                      int            `json:"smtp_port"`
	SMTPUser                      string         `json:"smtp_user"`
	SMTPPassword                  string         `json:"smtp_password"`
	MailFrom                      string         `json:"mail_from"`
	StorageBackend                string         `json:"storage_backend"`
	UploadDir                     string         `json:"upload_dir"`
	S3RootUser                    string         `json:"s3_root_user"`
	S3RootPassword                string         `json:"s3_root_password"`
	S3Bucket                      string         `json:"s3_bucket"`
	S3Region                      string         `json:"s3_region"`
	S3BaseEndpoint                string         `json:"s3_base_endpoint"`
	S3PublicURL                   string         `json:"s3_public_url"`
	AdminEmail                    string         `json:"admin_email"`
	AdminPassword                 string         `json:"admin_password"`
	LoginRateLimit                int            `json:"login_rate_limit"`
	TrustedProxies                []string       `json:"trusted_proxies"`
	LogLevel                      string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// ULPT_CONFIG). Keys missing from the file keep their current value.
// An unreadable or malformed file panics: the process must not start with
// a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFilePath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	fromJson(c, config)
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:              c.EndpointAddrHTTP,
		EndpointAddrGRPC:              c.EndpointAddrGRPC,
		DatabaseDSN:                   c.DatabaseDSN,
		AccessTokenSecret:             c.AccessTokenSecret,
		RefreshTokenSecret:            c.RefreshTokenSecret,
		PasswordTokenSecret:           c.PasswordTokenSecret,
		AccessTokenValidityDuration:   timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration:  timex.Duration{Duration: c.RefreshTokenValidityDuration},
		PasswordTokenValidityDuration: timex.Duration{Duration: c.PasswordTokenValidityDuration},
		FrontendURL:                   c.FrontendURL,
		CookieSecure:                  c.CookieSecure,
		CookieSameSite:                c.CookieSameSite,
		RedisAddr:                     c.RedisAddr,
		RedisPassword:                 c.RedisPassword,
		RedisDB:                       c.RedisDB,
		SMTPHost:                      c.SMTPHost,
		SMTPPort:                      c.SMTPPort,
		SMTPUser:                      c.SMTPUser,
		SMTPPassword:                  c.SMTPPassword,
		MailFrom:                      c.MailFrom,
		StorageBackend:                c.StorageBackend,
		UploadDir:                     c.UploadDir,
		S3RootUser:                    c.S3RootUser,
		S3RootPassword:                c.S3RootPassword,
		S3Bucket:                      c.S3Bucket,
		S3Region:                      c.S3Region,
		S3BaseEndpoint:                c.S3BaseEndpoint,
		S3PublicURL:                   c.S3PublicURL,
		AdminEmail:                    c.AdminEmail,
		AdminPassword:                 c.AdminPassword,
		LoginRateLimit:                c.LoginRateLimit,
		TrustedProxies:                c.TrustedProxies,
		LogLevel:                      c.LogLevel,
	}
}

func fromJson(c *JsonConfig, config *Config) {
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.AccessTokenSecret = c.AccessTokenSecret
	config.RefreshTokenSecret = c.RefreshTokenSecret
	config.PasswordTokenSecret = c.PasswordTokenSecret
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.PasswordTokenValidityDuration = c.PasswordTokenValidityDuration.Duration
	config.FrontendURL = c.FrontendURL
	config.CookieSecure = c.CookieSecure
	config.CookieSameSite = c.CookieSameSite
	config.RedisAddr = c.RedisAddr
	config.RedisPassword = c.RedisPassword
	config.RedisDB = c.RedisDB
	config.SMTPHost = c.SMTPHost
	config.SMTPPort = c.SMTPPort
	config.SMTPUser = c.SMTPUser
	config.SMTPPassword = c.SMTPPassword
	config.MailFrom = c.MailFrom
	config.StorageBackend = c.StorageBackend
	config.UploadDir = c.UploadDir
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3PublicURL = c.S3PublicURL
	config.AdminEmail = c.AdminEmail
	config.AdminPassword = c.AdminPassword
	config.LoginRateLimit = c.LoginRateLimit
	config.TrustedProxies = c.TrustedProxies
	config.LogLevel = c.LogLevel
}
