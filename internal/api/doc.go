// Package api exposes the practice session manager over HTTP. It decodes and
// validates requests, resolves the optional learner identity, maps service
// errors to status codes and shapes session snapshots for clients.
package api
