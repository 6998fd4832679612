// Package common contains shared constants and sentinel errors used across
// LinkVault components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Access link path convention shared by the HTTP boundary and the ingestor.
const (
	SharePathPrefix   = "/s/"
	ShareDirectSuffix = "now/"
	LegacyPathPrefix  = "/download/"
)
