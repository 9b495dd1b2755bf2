package ir

// Version constants for the value encoding and engine.
const (
	// IRVersion is the value encoding version stored alongside persisted documents.
	IRVersion = "1"

	// EngineVersion is the vmform engine version.
	EngineVersion = "0.1.0"
)
