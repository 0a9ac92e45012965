package errors

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorHandler normalizes faults and logs them with their classification.
// It never re-raises: callers decide the fallback outcome.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at error level, or warn level when it is retryable,
// merging the request fields into the entry. It returns the normalized error.
func (h *ErrorHandler) Handle(msg string, err error, fields map[string]interface{}) *StandardError {
	stdErr := Normalize(err)

	entry := stdErr.Fields()
	for k, v := range fields {
		entry[k] = v
	}

	if stdErr.Retryable {
		h.logger.Warn(msg, entry)
	} else {
		h.logger.Error(msg, entry)
	}
	return stdErr
}
