package telemetry

// Module label constants for metric emission. Every metric carries a
// "module" label so dashboards can segment by subsystem.
const (
	// ModuleConfirmation identifies metrics from the confirmation service
	ModuleConfirmation = "confirmation"

	// ModuleCache identifies metrics from the cache providers
	ModuleCache = "cache"

	// ModuleCore identifies metrics from shared framework code
	ModuleCore = "core"
)
