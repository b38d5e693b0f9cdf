package logging

const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldPackage is the package directory being read or written.
	FieldPackage = "package"
	// FieldAssetID is an asset identifier (bare UUID).
	FieldAssetID = "asset_id"
	// FieldCPLID is a composition playlist identifier.
	FieldCPLID = "cpl_id"
	// FieldPath is a file path on disk.
	FieldPath = "path"
	// FieldStandard is the packaging standard (interop or smpte).
	FieldStandard = "standard"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the consequence of a warning.
	FieldImpact = "impact"
)
