// Package identity implements the identity and session core for the campus
// issue-reporting service: credential login, OTP-gated registration, JWT
// backed sessions, and role-scoped authorization.
//
// The package is transport-agnostic; the HTTP surface lives in the server
// subpackage and the client-side session machinery in the client subpackage.
package identity
