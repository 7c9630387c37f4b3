package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/tandem/internal/flagx"
	"github.com/dmitrijs2005/tandem/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Duration fields accept "30s"-style strings or integer nanoseconds.
// Fields left out of the file keep whatever value the Config already had.
type JsonConfig struct {
	EndpointAddrGRPC     string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP     string         `json:"endpoint_addr_http"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	LogLevel             string         `json:"log_level"`
	RTCHost              string         `json:"rtc_host"`
	RTCAPIKey            string         `json:"rtc_api_key"`
	RTCAPISecret         string         `json:"rtc_api_secret"`
	RTCTokenTTL          timex.Duration `json:"rtc_token_ttl"`
	RTCCallTimeout       timex.Duration `json:"rtc_call_timeout"`
	GraceWindow          timex.Duration `json:"grace_window"`
	StaleHorizon         timex.Duration `json:"stale_horizon"`
	LiveWindowSlack      timex.Duration `json:"live_window_slack"`
	CancelCutoff         timex.Duration `json:"cancel_cutoff"`
	SessionCreditCost    int            `json:"session_credit_cost"`
	StreamPollInterval   timex.Duration `json:"stream_poll_interval"`
	IdempotencyRetention timex.Duration `json:"idempotency_retention"`
	AuditRetention       timex.Duration `json:"audit_retention"`
	RetentionInterval    timex.Duration `json:"retention_interval"`
	S3RootUser           string         `json:"s3_root_user"`
	S3RootPassword       string         `json:"s3_root_password"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config into config. Without either flag nothing is loaded. An unreadable
// file or invalid JSON panics: the process must not start half-configured.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.RTCHost, c.RTCHost)
	setString(&config.RTCAPIKey, c.RTCAPIKey)
	setString(&config.RTCAPISecret, c.RTCAPISecret)
	setDuration(&config.RTCTokenTTL, c.RTCTokenTTL)
	setDuration(&config.RTCCallTimeout, c.RTCCallTimeout)
	setDuration(&config.GraceWindow, c.GraceWindow)
	setDuration(&config.StaleHorizon, c.StaleHorizon)
	setDuration(&config.LiveWindowSlack, c.LiveWindowSlack)
	setDuration(&config.CancelCutoff, c.CancelCutoff)
	if c.SessionCreditCost > 0 {
		config.SessionCreditCost = c.SessionCreditCost
	}
	setDuration(&config.StreamPollInterval, c.StreamPollInterval)
	setDuration(&config.IdempotencyRetention, c.IdempotencyRetention)
	setDuration(&config.AuditRetention, c.AuditRetention)
	setDuration(&config.RetentionInterval, c.RetentionInterval)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
