// Package auth issues and validates the HMAC-signed JWTs that guard the
// mutating operator routes.
package auth
