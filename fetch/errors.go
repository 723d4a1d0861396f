package fetch

import "errors"

var (
	// ErrRequestFailed indicates the HTTP request could not be completed.
	ErrRequestFailed = errors.New("request failed")

	// ErrUnexpectedStatus indicates the server answered with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrParseFailed indicates the response body was not parseable HTML.
	ErrParseFailed = errors.New("failed to parse response")

	// ErrEmptyContent indicates the page yielded no extractable text.
	ErrEmptyContent = errors.New("no extractable content")
)
