package types

// Version is the canonical project version.
// The CLI, the run report schema and the completion event share it.
const Version = "0.3.0"

// ReportVersion is the run report schema version.
// Bumped in lockstep with Version.
const ReportVersion = Version
