// Package llmerrors assigns stable error codes to provider failures so
// retry policy and user messaging do not depend on provider-specific
// error strings.
package llmerrors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Error codes. Providers may embed a code directly in the error message
// as "[code] detail"; embedded codes are trusted verbatim.
const (
	CodeRateLimit       = "rate_limit"
	CodeAuthentication  = "authentication"
	CodeTimeout         = "timeout"
	CodeAborted         = "aborted"
	CodeInternalServer  = "internal_server"
	CodeInvalidRequest  = "invalid_request"
	CodeContextLength   = "context_length_exceeded"
	CodeModelNotFound   = "model_not_found"
	CodeContentFiltered = "content_filtered"
	CodeEmptyResponse   = "empty_response"
	CodeUnknown         = "unknown"
)

var embeddedCode = regexp.MustCompile(`^\[([a-z][a-z0-9_.]*)\]\s`)

// contextLengthPhrases are matched case-insensitively against the full
// error text. Providers word overflow errors inconsistently.
var contextLengthPhrases = []string{
	"context length",
	"context window",
	"maximum context",
	"token limit exceeded",
	"prompt is too long",
}

// Classify walks the error chain and returns a stable code. It never
// returns an empty string; errors it cannot place are "unknown".
func Classify(err error) string {
	if err == nil {
		return CodeUnknown
	}

	// Single cycle-guarded walk over the chain. errors.Is and errors.As
	// are avoided on purpose: they do not guard against Unwrap
	// implementations that self-reference.
	status := 0
	seen := map[error]bool{}
	for e := err; e != nil && !seen[e]; e = errors.Unwrap(e) {
		seen[e] = true

		// An embedded "[code] message" anywhere in the chain wins outright.
		if m := embeddedCode.FindStringSubmatch(e.Error()); m != nil {
			return m[1]
		}
		if e == context.DeadlineExceeded {
			return CodeTimeout
		}
		if e == context.Canceled {
			return CodeAborted
		}
		if status == 0 {
			if apiErr, ok := e.(*openai.APIError); ok {
				status = apiErr.HTTPStatusCode
			} else if se, ok := e.(interface{ StatusCode() int }); ok {
				status = se.StatusCode()
			}
		}
	}

	if code := classifyStatus(status); code != "" {
		return code
	}
	return classifyMessage(err.Error())
}

func classifyStatus(status int) string {
	switch {
	case status == 429:
		return CodeRateLimit
	case status == 401 || status == 403:
		return CodeAuthentication
	case status == 408 || status == 504:
		return CodeTimeout
	case status == 404:
		return CodeModelNotFound
	case status >= 500:
		return CodeInternalServer
	case status >= 400:
		return CodeInvalidRequest
	}
	return ""
}

func classifyMessage(msg string) string {
	lower := strings.ToLower(msg)

	for _, phrase := range contextLengthPhrases {
		if strings.Contains(lower, phrase) {
			return CodeContextLength
		}
	}

	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return CodeRateLimit
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "authentication") || strings.Contains(lower, "permission denied"):
		return CodeAuthentication
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded"):
		return CodeTimeout
	case strings.Contains(lower, "canceled") || strings.Contains(lower, "cancelled") ||
		strings.Contains(lower, "aborted"):
		return CodeAborted
	case strings.Contains(lower, "model not found") || strings.Contains(lower, "unknown model") ||
		strings.Contains(lower, "does not exist"):
		return CodeModelNotFound
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "content policy") ||
		strings.Contains(lower, "flagged"):
		return CodeContentFiltered
	case strings.Contains(lower, "empty response") || strings.Contains(lower, "no content"):
		return CodeEmptyResponse
	case strings.Contains(lower, "overloaded") || strings.Contains(lower, "internal server") ||
		strings.Contains(lower, "service unavailable") || strings.Contains(lower, "bad gateway"):
		return CodeInternalServer
	case strings.Contains(lower, "invalid request") || strings.Contains(lower, "bad request"):
		return CodeInvalidRequest
	}
	return CodeUnknown
}

// IsTransient reports whether a retry with the same request could succeed.
func IsTransient(code string) bool {
	switch code {
	case CodeRateLimit, CodeTimeout, CodeInternalServer, CodeEmptyResponse:
		return true
	}
	return false
}

// IsContextOverflow reports whether the request exceeded the model's
// context window and must shrink before any retry.
func IsContextOverflow(code string) bool {
	return code == CodeContextLength
}

// UserMessage maps a code to a short operator-friendly explanation.
func UserMessage(code string) string {
	switch code {
	case CodeRateLimit:
		return "The model is receiving too many requests. Please try again shortly."
	case CodeAuthentication:
		return "The model rejected the configured credentials."
	case CodeTimeout:
		return "The model took too long to respond."
	case CodeAborted:
		return "The request was cancelled."
	case CodeContextLength:
		return "The conversation is too long for the model. Start a new session or trim history."
	case CodeModelNotFound:
		return "The configured model is not available."
	case CodeContentFiltered:
		return "The response was blocked by the provider's content filter."
	case CodeEmptyResponse:
		return "The model returned an empty response."
	case CodeInternalServer:
		return "The model provider reported an internal error."
	case CodeInvalidRequest:
		return "The model rejected the request as invalid."
	}
	return "An unexpected error occurred while contacting the model."
}
