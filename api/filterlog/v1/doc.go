// Package filterlogv1 defines the filterlog.v1.LogsService gRPC contract.
//
// Messages are google.protobuf.Struct values; the typed request and response
// helpers in this package convert them to and from Go values so neither side
// handles Struct fields directly.
package filterlogv1
