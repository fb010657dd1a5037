// Package internal contains helpers private to goToken: random secrets and the identifiers used
// for key ids and jti values.
//
// Nothing here may appear in the public goToken API.
package internal
