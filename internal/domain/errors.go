package domain

import "fmt"

// BackendError reports a response the backend produced but refused to serve:
// either a non-2xx status or an envelope with success=false.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected request (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("backend rejected request (status %d): %s", e.StatusCode, e.Message)
}
