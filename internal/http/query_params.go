package http

import (
	"net/url"
	"strings"

	"github.com/brendan.keane/hreq/internal/errors"
)

// ApplyQueryParameters adds key=value query parameters to a target URL
func ApplyQueryParameters(targetURL string, queryParams []string) (string, error) {
	if len(queryParams) == 0 {
		return targetURL, nil
	}

	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, "failed to parse target URL for query parameters").
			WithContext("url", targetURL)
	}

	query := parsedURL.Query()
	for _, param := range queryParams {
		key, value, _ := strings.Cut(param, "=")
		if key == "" {
			continue
		}
		query.Add(key, value)
	}

	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}
