/*
Package api holds the HTTP surface of the geodata registry.

Subpackages:

  - recordhandler: record store endpoints under /api/blockchain and a client
    that speaks them
  - datahandler: upload, encrypt and listing endpoints under /api/data
  - servers: HTTP server lifecycle, health and drain endpoints

The caller identity is taken from the X-Caller-Address header. Record store
errors map to status codes:

	ErrDuplicateID    409 Conflict
	ErrRecordNotFound 404 Not Found
	ErrUnauthorized   403 Forbidden
	malformed input   400 Bad Request
	anything else     500 Internal Server Error
*/
package api
