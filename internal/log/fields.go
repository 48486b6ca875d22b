package log

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldSender     = "sender"
	FieldDate       = "date"
	FieldIntent     = "intent"
	FieldEntryKind  = "kind"
	FieldEntryID    = "entry_id"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentBot       = "bot"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentNotify    = "notify"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

const (
	OpUpsertOdometer = "upsert_odometer"
	OpAppendRide     = "append_ride"
	OpAppendFuel     = "append_fuel"
	OpReadDay        = "read_day"
	OpPublish        = "publish"
	OpSend           = "send"
)

// Fields is an ordered list of slog key/value pairs.
type Fields []any

func NewFields() Fields { return Fields{} }

func (f Fields) With(key string, v any) Fields {
	return append(f, key, v)
}

func (f Fields) WithComponent(c string) Fields { return f.With(FieldComponent, c) }

func (f Fields) WithOperation(op string) Fields { return f.With(FieldOperation, op) }

func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return f.With(FieldError, err.Error())
}

// WithDay adds the ledger key of a user-day.
func (f Fields) WithDay(sender, date string) Fields {
	return f.With(FieldSender, sender).With(FieldDate, date)
}

func (f Fields) WithHTTP(method, path string, status int, durationMs int64) Fields {
	return f.With(FieldMethod, method).
		With(FieldPath, path).
		With(FieldStatusCode, status).
		With(FieldDuration, durationMs)
}
