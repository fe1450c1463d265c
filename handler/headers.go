package handler

import (
	"strings"

	"github.com/google/uuid"
)

const allowedMethods = "POST, OPTIONS"

// newCorrelationID is replaced in tests.
var newCorrelationID = func() string {
	return uuid.NewString()
}

// responseHeaders are sent on every response, pre-flight included.
func responseHeaders(corrID string) map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json; charset=utf-8",
		"Cache-Control":                "no-store",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type, " + correlationHeader,
		"Access-Control-Allow-Methods": allowedMethods,
		correlationHeader:              corrID,
	}
}

// correlationID reuses a caller-supplied id (header names are matched case
// insensitively) or generates one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return newCorrelationID()
}
