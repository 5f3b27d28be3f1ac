package errors

import (
	"errors"
)

var (
	// General Errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConfigMissing   = errors.New("required configuration is not set")
	ErrInvalidConfig   = errors.New("invalid configuration value")

	// File & Directory Errors
	ErrFileReadError = errors.New("error reading file")
	ErrDirNotFound   = errors.New("directory not found")
	ErrDirReadError  = errors.New("error reading directory")
	ErrInvalidJSON   = errors.New("invalid JSON")

	// URL Errors
	ErrInvalidURL = errors.New("invalid URL")

	// Remote API Errors
	ErrRequestFailed    = errors.New("request to workflow API failed")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrLookupFailed     = errors.New("failed to fetch workflow")
	ErrHTTPStatusFailed = errors.New("unexpected HTTP status code")
	ErrDecodeResponse   = errors.New("failed to decode response body")
	ErrMissingRemoteID  = errors.New("workflow ID not found")
	ErrAmbiguousMatch   = errors.New("ambiguous workflow name")
	ErrCreateFailed     = errors.New("create failed")
	ErrUpdateFailed     = errors.New("update failed")

	// Run Errors
	ErrDeploymentFailed = errors.New("deployment finished with errors")
	ErrFatalRun         = errors.New("fatal error")
)

// Is wraps the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps the standard library errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
