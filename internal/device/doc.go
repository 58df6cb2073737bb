// Package device keeps the registry of filter devices that report logs.
// Devices are created on first ingest when auto-create is enabled and are
// constrained by the configured name pattern, allow-list and cap.
package device
