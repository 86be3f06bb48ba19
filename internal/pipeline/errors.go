package pipeline

import "errors"

// GenericFailure is the message stored on a job for any failure that is not the
// caller's content.
const GenericFailure = "An unexpected error occurred during transcription. Please try again."

// ContentError is a failure caused by the uploaded media itself. Its Message is shown
// to the account owner as-is.
type ContentError struct {
	Message string
	Err     error
}

func (e *ContentError) Error() string { return e.Message }

func (e *ContentError) Unwrap() error { return e.Err }

// FailureMessage picks the user-facing message for err.
func FailureMessage(err error) string {
	var ce *ContentError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return GenericFailure
}
