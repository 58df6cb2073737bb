// Package httpserver exposes the filter log API over HTTP/JSON: health,
// devices, stateless cursor pages, ingest and server-side pagination views.
// Every response carries an X-Request-ID header that is also attached to the
// request's log lines.
package httpserver
