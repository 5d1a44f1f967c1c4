package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the peer.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrAuthFailed indicates the peer rejected the client credentials.
	ErrAuthFailed = errors.New("network: authentication failed")

	// ErrInvalidResponse indicates the peer returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrRemote indicates the peer answered with a JSON-RPC error.
	ErrRemote = errors.New("network: remote error")

	// ErrNotServed indicates the handler has no service for the called method.
	ErrNotServed = errors.New("network: service not available")

	// ErrInvalidLocation indicates a service location cannot be turned into a URL.
	ErrInvalidLocation = errors.New("network: invalid service location")

	// ErrDNSLookupFailed indicates a DNS lookup failed.
	ErrDNSLookupFailed = errors.New("network: DNS lookup failed")

	// ErrNoEndpoints indicates no SRV records exist for a location.
	ErrNoEndpoints = errors.New("network: no endpoints found")

	// ErrDNSSECValidationFailed indicates the DNS response was not authenticated.
	ErrDNSSECValidationFailed = errors.New("network: DNSSEC validation failed")
)
