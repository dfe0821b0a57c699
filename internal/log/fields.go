package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldScope      = "scope"
	FieldRuleID     = "rule_id"
	FieldRuleName   = "rule_name"
	FieldCategory   = "category"
	FieldTag        = "tag"
	FieldAmount     = "amount_cents"
	FieldProvider   = "provider"
	FieldAccount    = "account"
	FieldSource     = "source"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentBudget   = "budget"
	ComponentRegistry = "registry"
	ComponentStorage  = "storage"
	ComponentScrape   = "scrape"
	ComponentEvents   = "events"
	ComponentExport   = "export"
	ComponentTrace    = "trace"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpView      = "view"
	OpValidate  = "validate"
	OpRollover  = "rollover"
	OpReconcile = "reconcile"
	OpPull      = "pull"
	OpExport    = "export"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
