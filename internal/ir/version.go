package ir

// Version constants for the record format and the runtime.
const (
	// RecordVersion is the on-disk event record format version.
	RecordVersion = "1"

	// EngineVersion is the stateloop runtime version.
	EngineVersion = "0.1.0"
)
