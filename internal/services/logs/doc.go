// Package logsvc implements the filter log service: ingest with device
// attribution and validation, stateless cursor pages, server-side pagination
// views and the retention janitor.
package logsvc
