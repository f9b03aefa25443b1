package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldUserID     = "user_id"
	FieldError      = "error"
	FieldCursor     = "cursor"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldCategoryID = "category_id"
	FieldExternalID = "external_id"
	FieldAmount     = "amount_cents"
	FieldApplied    = "applied"
	FieldSkipped    = "skipped_duplicates"
	FieldModified   = "modified"
	FieldRemoved    = "removed"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentSync     = "sync"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentProvider = "provider"
	ComponentBudget   = "budget"
)
