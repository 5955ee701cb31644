package logging

const emptyString = ""

// Field names shared by the record layout and the sink filters.
const (
	RequestField     = "request"
	RequestIDField   = "request_id"
	UserIDField      = "user_id"
	TraceIDField     = "trace_id"
	SpanIDField      = "span_id"
	PIDField         = "pid"
	EnvironmentField = "environment"
	AppNameField     = "app_name"
	AppVersionField  = "app_version"
	StackField       = "stack"
)

const (
	errMsgNilConfig     = "Logging config is nil."
	errMsgNilService    = "Logger service is nil."
	errMsgConfigInvalid = "Logging configuration is invalid."
	errMsgNoSinks       = "No logging sinks enabled."
	errMsgSinkOpen      = "Failed to open log sink."
	errMsgSinkClose     = "Failed to close log sink."
)
