package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldClientIP       = "client_ip"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldYear           = "year"
	FieldMonth          = "month"
	FieldAccountID      = "account_id"
	FieldCategoryID     = "category_id"
	FieldTransactionID  = "transaction_id"
	FieldSubscriptionID = "subscription_id"
	FieldTransferID     = "transfer_id"
	FieldAmountCents    = "amount_cents"
	FieldBalanceCents   = "balance_cents"
	FieldKind           = "kind"
	FieldDate           = "date"
	FieldEventType      = "event_type"
	FieldForce          = "force"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentCLI       = "cli"
	ComponentLedger    = "ledger"
	ComponentJournal   = "journal"
	ComponentScheduler = "scheduler"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpProcess  = "process"
	OpPublish  = "publish"
	OpSync     = "sync"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the identifying fields of a journal row
func (f LogFields) WithTransaction(id, accountID, categoryID, kind string, amountCents int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldAccountID] = accountID
	if categoryID != "" {
		f[FieldCategoryID] = categoryID
	}
	f[FieldKind] = kind
	f[FieldAmountCents] = amountCents
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
