// Package common contains shared constants and sentinel errors used across
// Tandem components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ErrorDomain is reported in the Domain field of structured gRPC error details.
const ErrorDomain = "tandem"
