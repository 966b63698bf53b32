package app

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// statusCoder is implemented by errors that map to a specific http status.
type statusCoder interface {
	StatusCode() int
}

// payloader is implemented by errors carrying extra response body fields.
type payloader interface {
	Payload() map[string]interface{}
}

// ErrorStatusCode returns the http status code for given error.
// Unknown errors map to status 500.
func ErrorStatusCode(err error) int {
	if sc, ok := errors.Cause(err).(statusCoder); ok {
		return sc.StatusCode()
	}

	return http.StatusInternalServerError
}

// ErrorPayload returns the response body fields for given error.
func ErrorPayload(err error) map[string]interface{} {
	cause := errors.Cause(err)
	if p, ok := cause.(payloader); ok {
		return p.Payload()
	}

	return map[string]interface{}{"message": cause.Error()}
}

// InvalidRequestError is special error type returned when any request params are invalid
type InvalidRequestError string

// Error implements error interface
func (e InvalidRequestError) Error() string {
	return string(e)
}

// StatusCode implements statusCoder.
func (InvalidRequestError) StatusCode() int {
	return http.StatusBadRequest
}

// IsInvalidRequest tells that this error is 'invalid request'.
// Returns always true.
func (InvalidRequestError) IsInvalidRequest() bool {
	return true
}

// IsInvalidRequestError checks if given error is caused by invalid request
func IsInvalidRequestError(err error) bool {
	type invalidReqErr interface {
		IsInvalidRequest() bool
	}

	err = errors.Cause(err)
	if ire, ok := err.(invalidReqErr); ok {
		return ire.IsInvalidRequest()
	}

	return false
}

// QuotaExceededError is returned when the upstream request quota is exhausted.
// The caller may retry after ResetAt. This app never retries automatically.
type QuotaExceededError struct {
	ResetAt time.Time
}

// Error implements error interface
func (e QuotaExceededError) Error() string {
	wait := int(math.Ceil(time.Until(e.ResetAt).Seconds()))
	return fmt.Sprintf("rate limit reached, please try again in %d seconds", wait)
}

// StatusCode implements statusCoder.
func (QuotaExceededError) StatusCode() int {
	return http.StatusForbidden
}

// Payload implements payloader.
func (e QuotaExceededError) Payload() map[string]interface{} {
	return map[string]interface{}{
		"message":    e.Error(),
		"reset_at":   e.ResetAt.Unix(),
		"reset_utc":  e.ResetAt.UTC().Format(time.RFC3339),
		"reset_nice": "RateLimit resets " + humanize.Time(e.ResetAt),
	}
}

// IsQuotaExceeded tells that this error is 'quota exceeded'.
// Returns always true.
func (QuotaExceededError) IsQuotaExceeded() bool {
	return true
}

// IsQuotaExceededError checks if given error is caused by exhausted request quota
func IsQuotaExceededError(err error) bool {
	type quotaErr interface {
		IsQuotaExceeded() bool
	}

	err = errors.Cause(err)
	if qe, ok := err.(quotaErr); ok {
		return qe.IsQuotaExceeded()
	}

	return false
}

// UpstreamError is returned for any non-2xx upstream response that isn't a quota failure.
type UpstreamError struct {
	Status  int
	Message string
}

// Error implements error interface
func (e UpstreamError) Error() string {
	return e.Message
}

// StatusCode implements statusCoder.
func (e UpstreamError) StatusCode() int {
	return e.Status
}

// IsUpstreamError checks if given error is caused by an upstream api failure
func IsUpstreamError(err error) bool {
	_, ok := errors.Cause(err).(UpstreamError)
	return ok
}

// OrganizationNotFoundError is returned when the upstream api doesn't know the organization.
type OrganizationNotFoundError string

// Error implements error interface
func (e OrganizationNotFoundError) Error() string {
	return fmt.Sprintf("organization %q not found", string(e))
}

// StatusCode implements statusCoder.
func (OrganizationNotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// IsOrganizationNotFoundError checks if given error is caused by an unknown organization
func IsOrganizationNotFoundError(err error) bool {
	_, ok := errors.Cause(err).(OrganizationNotFoundError)
	return ok
}

// RepositoryLoadError is returned when a contributor reload failed after it started.
type RepositoryLoadError struct {
	Repository string
	Err        error
}

// Error implements error interface
func (e RepositoryLoadError) Error() string {
	return fmt.Sprintf("failed to load contributors for repository %s: %v", e.Repository, e.Err)
}

// Unwrap returns the underlying error.
func (e RepositoryLoadError) Unwrap() error {
	return e.Err
}

// StatusCode implements statusCoder.
func (e RepositoryLoadError) StatusCode() int {
	return http.StatusBadGateway
}

// IsRepositoryLoadError checks if given error is caused by a failed repository reload
func IsRepositoryLoadError(err error) bool {
	for err != nil {
		if _, ok := err.(RepositoryLoadError); ok {
			return true
		}
		err = errors.Unwrap(err)
	}

	return false
}
