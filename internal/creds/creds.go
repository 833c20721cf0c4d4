// Package creds supplies the reporting API endpoint and auth token when call
// options do not override them.
package creds

// Store is the credential lookup capability.
type Store interface {
	// Endpoint returns the base reporting API URL. It may embed user:pass@
	// basic-auth credentials, which the transport strips into a header.
	Endpoint() string
	// Token returns the API auth token. Sent only as a payload field,
	// never logged.
	Token() string
}

// Static holds fixed credentials, typically loaded from config and env.
type Static struct {
	URL       string
	AuthToken string
}

func (s Static) Endpoint() string { return s.URL }
func (s Static) Token() string    { return s.AuthToken }
