package domain

import (
	"fmt"
	"time"
)

// RetryPolicy is an ordered backoff schedule.
// The number of retries equals the number of delays.
type RetryPolicy struct {
	Delays []time.Duration
}

// Retries returns how many retries the policy allows after the first attempt.
func (p RetryPolicy) Retries() int {
	return len(p.Delays)
}

// Delay returns the wait before retry number attempt (zero-based) and whether
// that retry is allowed.
func (p RetryPolicy) Delay(attempt int) (time.Duration, bool) {
	if attempt < 0 || attempt >= len(p.Delays) {
		return 0, false
	}
	return p.Delays[attempt], true
}

// UploadOutcome tags an UploadResult.
type UploadOutcome int

// Upload outcomes.
const (
	UploadSuccess UploadOutcome = iota + 1
	UploadClientError
	UploadServerError
	UploadTransportError
)

// String returns the string representation.
func (o UploadOutcome) String() string {
	switch o {
	case UploadSuccess:
		return "success"
	case UploadClientError:
		return "client-error"
	case UploadServerError:
		return "server-error"
	case UploadTransportError:
		return "transport-error"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// UploadResult is the outcome of one upload attempt.
type UploadResult struct {
	Outcome UploadOutcome

	// StatusCode and Body are set for client and server errors.
	StatusCode int
	Body       []byte

	// Err is set for transport errors.
	Err error
}

// UploadOK returns a successful result.
func UploadOK() UploadResult {
	return UploadResult{Outcome: UploadSuccess}
}

// UploadRejected returns a 4xx result.
func UploadRejected(code int, body []byte) UploadResult {
	return UploadResult{Outcome: UploadClientError, StatusCode: code, Body: body}
}

// UploadFailed returns a 5xx result.
func UploadFailed(code int, body []byte) UploadResult {
	return UploadResult{Outcome: UploadServerError, StatusCode: code, Body: body}
}

// UploadUnreachable returns a transport failure result.
func UploadUnreachable(err error) UploadResult {
	return UploadResult{Outcome: UploadTransportError, Err: err}
}

// Retriable reports whether the result should be retried.
func (r UploadResult) Retriable() bool {
	return r.Outcome == UploadServerError || r.Outcome == UploadTransportError
}

func (r UploadResult) String() string {
	switch r.Outcome {
	case UploadClientError, UploadServerError:
		return fmt.Sprintf("%s (HTTP %d)", r.Outcome, r.StatusCode)
	case UploadTransportError:
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	default:
		return r.Outcome.String()
	}
}

// DownloadOutcome tags a DownloadResult.
type DownloadOutcome int

// Download outcomes.
const (
	DownloadSuccess DownloadOutcome = iota + 1
	DownloadNoDocument
	DownloadError
)

// String returns the string representation.
func (o DownloadOutcome) String() string {
	switch o {
	case DownloadSuccess:
		return "success"
	case DownloadNoDocument:
		return "no-document-pending"
	case DownloadError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// DownloadResult is the outcome of one download-next call.
type DownloadResult struct {
	Outcome DownloadOutcome

	// DocumentID, File and DocumentType are set on success.
	// File is the absolute path of the staged copy.
	DocumentID   string
	File         string
	DocumentType string

	// Err is set on error.
	Err error
}

// Downloaded returns a successful result.
func Downloaded(documentID, file, documentType string) DownloadResult {
	return DownloadResult{Outcome: DownloadSuccess, DocumentID: documentID, File: file, DocumentType: documentType}
}

// NoDocumentPending returns the empty-queue result.
func NoDocumentPending() DownloadResult {
	return DownloadResult{Outcome: DownloadNoDocument}
}

// DownloadFailed returns an error result.
func DownloadFailed(err error) DownloadResult {
	return DownloadResult{Outcome: DownloadError, Err: err}
}
