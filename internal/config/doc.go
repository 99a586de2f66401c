// Package config loads stateloop's YAML configuration.
//
// A document is checked against an embedded CUE schema before it is
// decoded, so unknown keys and out-of-range values are reported with their
// path instead of being silently dropped. Omitted fields keep the values
// from Default.
package config
