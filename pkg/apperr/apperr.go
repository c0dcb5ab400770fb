package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaSelector = "selector"
	MetaElement  = "element"
	MetaURL      = "url"

	StageStartup    = "startup"
	StageBrowser    = "browser"
	StageNavigation = "navigation"
	StageSubmit     = "submit"
	StageDetection  = "detection"
	StageExtraction = "extraction"
	StageScreenshot = "screenshot"

	CodeInternal        = "internal"
	CodeInvalidArgument = "invalid_argument"
	CodeLaunchFailed    = "launch_failed"
	CodeNavigation      = "navigation_failed"
	CodeInputNotFound   = "input_not_found"
	CodeExtraction      = "extraction_failed"
	CodeTimeout         = "timeout"
	CodeRateLimited     = "rate_limited"
	CodeBrowserNotReady = "browser_not_ready"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

// CodeOf extracts the domain code from an error chain. Errors that did
// not come from this package classify as internal.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	return CodeInternal
}

func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
