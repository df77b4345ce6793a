package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan.keane/hreq/internal/errors"
)

// AssertErrorType fails the test unless err is an HreqError of errType.
func AssertErrorType(t *testing.T, err error, errType errors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.Equalf(t, errType, errors.GetType(err), "error: %v", err)
}

// RequestLines splits a captured raw request head into its lines.
func RequestLines(raw string) []string {
	head, _, _ := strings.Cut(raw, "\r\n\r\n")
	return strings.Split(head, "\r\n")
}

// RequestBody returns what follows the blank line of a captured request.
func RequestBody(raw string) string {
	_, body, _ := strings.Cut(raw, "\r\n\r\n")
	return body
}

// AssertHeaderLine fails the test unless raw carries line as a header line.
func AssertHeaderLine(t *testing.T, raw, line string) {
	t.Helper()
	assert.Contains(t, RequestLines(raw)[1:], line, "request:\n%s", raw)
}

// AssertNoHeader fails the test if raw carries a header called name.
func AssertNoHeader(t *testing.T, raw, name string) {
	t.Helper()
	for _, l := range RequestLines(raw)[1:] {
		n, _, _ := strings.Cut(l, ":")
		assert.Falsef(t, strings.EqualFold(strings.TrimSpace(n), name), "unexpected header %q in:\n%s", l, raw)
	}
}

// SkipIfShort skips long-running tests under -short.
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping in short mode: %s", reason)
	}
}
