// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts the practice, job and rating services
// to HTTP and streams job progress over WebSocket.
package api
