// Package server implements the HTTP surface of the message board. It
// wires the routes, the shared board and the upload store behind the
// request-id, logging, security, rate-limit and compression middleware,
// and provides lifecycle helpers used by tests and the production binary.
package server
