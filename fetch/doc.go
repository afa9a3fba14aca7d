// Package fetch retrieves linked-data resources over HTTP.
//
// # Security
//
// Every request passes a Guard before it is sent:
//
//   - scheme must be https, or http when AllowHTTP is set
//   - localhost, .local and .internal hosts are rejected
//   - private, link-local, CGNAT and IPv6 unique-local addresses are rejected
//   - resolved addresses are checked again by the dialer (DNS rebinding)
//   - every redirect target is validated
//
// Tests and local deployments set AllowPrivate to reach loopback servers.
//
// # Negotiation
//
// AcceptHeader builds q-valued Accept headers for RDF formats, and
// AlternateJSONLD follows Link headers that advertise a JSON-LD
// representation.
//
// # Retry
//
// Network errors, 429 and 5xx responses are retried with the semstreams
// exponential backoff. Other 4xx responses and oversize bodies fail at once.
package fetch
