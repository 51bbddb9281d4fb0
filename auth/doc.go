// Package auth verifies the HS256 bearer tokens that guard contentd's admin
// endpoints and carries the resulting identity through request contexts.
package auth
