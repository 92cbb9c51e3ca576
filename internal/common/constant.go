// Package common contains constants, sentinel errors and small helpers shared
// by the Firecat client and the reference node.
package common

const (
	// AuthorizationHeader carries the wallet session token as "Bearer <jwt>".
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "

	// CorrelationIDHeader is echoed by the node and forwarded by the client.
	CorrelationIDHeader = "X-Correlation-ID"

	// AppKey identifies this application to the wallet service.
	AppKey = "firecat-notes-v1"
)
