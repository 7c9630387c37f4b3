package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/tandem/internal/flagx"
)

var serverFlags = []string{
	"-a", "-w", "-d", "-s", "-l",
	"-r", "-k", "-x", "-t", "-o",
	"-G", "-Z", "-W", "-C", "-m", "-i",
	"-I", "-A", "-P",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-w string     HTTP bind address for health and the match stream
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-l string     log level (debug, info, warn, error)
//	-r string     RTC provider base URL (empty: in-process provider)
//	-k string     RTC API key
//	-x string     RTC API secret
//	-t duration   RTC join credential lifetime
//	-o duration   RTC call timeout
//	-G duration   reconciliation grace window
//	-Z duration   reconciliation staleness horizon
//	-W duration   live window slack around a booking
//	-C duration   non-admin cancel cut-off before start
//	-m int        credits charged per booking
//	-i duration   match stream poll interval
//	-I duration   idempotency record retention
//	-A duration   audit entry retention before archiving
//	-P duration   retention sweep period
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket for audit archives
//	-g string     S3 region
//	-e string     S3 base endpoint
//
// Only the flags listed above are parsed (see flagx.FilterArgs), so other
// components may define their own.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.RTCHost, "r", config.RTCHost, "RTC provider base URL")
	fs.StringVar(&config.RTCAPIKey, "k", config.RTCAPIKey, "RTC API key")
	fs.StringVar(&config.RTCAPISecret, "x", config.RTCAPISecret, "RTC API secret")
	fs.DurationVar(&config.RTCTokenTTL, "t", config.RTCTokenTTL, "RTC join credential lifetime")
	fs.DurationVar(&config.RTCCallTimeout, "o", config.RTCCallTimeout, "RTC call timeout")

	fs.DurationVar(&config.GraceWindow, "G", config.GraceWindow, "reconciliation grace window")
	fs.DurationVar(&config.StaleHorizon, "Z", config.StaleHorizon, "reconciliation staleness horizon")
	fs.DurationVar(&config.LiveWindowSlack, "W", config.LiveWindowSlack, "live window slack")
	fs.DurationVar(&config.CancelCutoff, "C", config.CancelCutoff, "cancel cut-off")
	fs.IntVar(&config.SessionCreditCost, "m", config.SessionCreditCost, "credits per booking")
	fs.DurationVar(&config.StreamPollInterval, "i", config.StreamPollInterval, "match stream poll interval")

	fs.DurationVar(&config.IdempotencyRetention, "I", config.IdempotencyRetention, "idempotency record retention")
	fs.DurationVar(&config.AuditRetention, "A", config.AuditRetention, "audit entry retention")
	fs.DurationVar(&config.RetentionInterval, "P", config.RetentionInterval, "retention sweep period")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 audit archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
