package common

import "time"

const (
	// AuthorizationHeaderName carries the session token as "Bearer <token>".
	AuthorizationHeaderName = "Authorization"
	BearerPrefix            = "Bearer "

	// OTPLength is the number of decimal digits in a one-time code.
	OTPLength = 6

	// DefaultOTPValidity and DefaultSessionValidity mirror the product defaults.
	DefaultOTPValidity     = 10 * time.Minute
	DefaultSessionValidity = 30 * 24 * time.Hour
)
