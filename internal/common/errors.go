package common

import "errors"

var (
	// validation errors, surfaced to the caller as-is
	ErrInvalidFileType = errors.New("invalid file type: only .md files are supported")
	ErrDecode          = errors.New("file content is not valid for the configured encoding")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrFileTooLarge    = errors.New("file exceeds the maximum upload size")
	ErrUnknownEngine   = errors.New("unknown grammar engine: use local or remote")

	// repository specific errors
	ErrNotFound = errors.New("note not found")

	// grammar engine errors
	ErrRemoteServiceUnavailable = errors.New("remote grammar service unavailable")
	ErrRemoteResponseMalformed  = errors.New("remote grammar response malformed")
	ErrGrammarCheckFailed       = errors.New("grammar check failed")
)

// IsClientError reports whether err is caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidFileType) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrUnknownEngine) ||
		errors.Is(err, ErrNotFound)
}
