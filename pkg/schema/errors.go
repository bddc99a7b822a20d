package schema

import (
	"errors"
	"fmt"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

var (
	ErrUnwantedTask           = errors.New("unwanted task")
	ErrCannotParseFile        = errors.New("handler cannot parse file")
	ErrCannotParseField       = errors.New("handler cannot parse field")
	ErrPumpAborted            = errors.New("file pump aborted")
	ErrFileSizeLimit          = errors.New("file size limit exceeded")
	ErrNoNewUploads           = errors.New("no new uploads allowed")
	ErrUploadsAborted         = errors.New("uploads aborted")
	ErrUploadsNotAborted      = errors.New("uploads settled before they could be aborted")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrDetached               = errors.New("stream detached")
	ErrAlreadyStarted         = errors.New("already started")
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// MissingEntriesError is returned when a handler finishes before every
// required part has arrived.
type MissingEntriesError struct {
	Keys []string
}

// TaskErrors collects the failures of tasks awaited during settlement.
type TaskErrors struct {
	Errs []error
}

// DeleteErrors collects every failed deletion of a cleanup pass.
type DeleteErrors struct {
	Errs []error
}

// FieldsLimitError is returned when a count limit is exceeded. Kind is
// one of "field(s)", "file(s)" or "part(s)".
type FieldsLimitError struct {
	Kind  string
	Limit int
}

// InvalidOrderError is returned when a part arrives after the live stream
// has been handed off.
type InvalidOrderError struct {
	Stream string
	Key    string
}

// InvalidStreamOptionError is returned when the stream part is also
// persisted or returned as a field.
type InvalidStreamOptionError struct {
	Key string
}

// TruncatedFieldError is returned for a truncated field. An empty key
// means the field name itself was truncated.
type TruncatedFieldError struct {
	Key string
}

type FieldNameSizeError struct {
	Limit int
}

type FileSizeError struct {
	Key   string
	Limit int64
}

// ParsingErrors is the terminal error of a parser. Errs holds every
// error registered while parsing, and the remaining fields hold the
// outcome of each handler.
type ParsingErrors struct {
	Errs       []error
	FieldErr   error
	PersistErr error
	StreamErr  error
}

////////////////////////////////////////////////////////////////////////////////
// ERROR

func (e *MissingEntriesError) Error() string {
	return "missing entries: " + strings.Join(e.Keys, ", ")
}

func (e *TaskErrors) Error() string {
	return joinLines(e.Errs)
}

func (e *TaskErrors) Unwrap() []error {
	return e.Errs
}

func (e *DeleteErrors) Error() string {
	return joinLines(e.Errs)
}

func (e *DeleteErrors) Unwrap() []error {
	return e.Errs
}

func (e *FieldsLimitError) Error() string {
	return fmt.Sprintf("limit exceeded: more than %d %s", e.Limit, e.Kind)
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid form data order: part %q arrived after stream %q", e.Key, e.Stream)
}

func (e *InvalidStreamOptionError) Error() string {
	return fmt.Sprintf("stream %q cannot also be persisted or returned as a field", e.Key)
}

func (e *TruncatedFieldError) Error() string {
	if e.Key == "" {
		return "truncated field name"
	}
	return fmt.Sprintf("truncated field %q", e.Key)
}

func (e *FieldNameSizeError) Error() string {
	return fmt.Sprintf("field name exceeds %d bytes", e.Limit)
}

func (e *FileSizeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("file exceeds %d bytes", e.Limit)
	}
	return fmt.Sprintf("file %q exceeds %d bytes", e.Key, e.Limit)
}

func (e *FileSizeError) Is(target error) bool {
	return target == ErrFileSizeLimit
}

func (e *ParsingErrors) Error() string {
	errs := e.Unwrap()
	if len(errs) == 0 {
		return "parsing failed"
	}
	return joinLines(errs)
}

// Unwrap returns every distinct error carried by the parser outcome
func (e *ParsingErrors) Unwrap() []error {
	result := make([]error, 0, len(e.Errs)+3)
	seen := make(map[error]bool, cap(result))
	for _, err := range append(append([]error{}, e.Errs...), e.FieldErr, e.PersistErr, e.StreamErr) {
		if err == nil || seen[err] {
			continue
		}
		seen[err] = true
		result = append(result, err)
	}
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func joinLines(errs []error) string {
	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			lines = append(lines, err.Error())
		}
	}
	return strings.Join(lines, "\n")
}
