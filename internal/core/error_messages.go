// Package core provides the catalog service built on the sanitizer.
//
// # Error Codes Reference
//
// Errors returned to API clients carry a code for support reference.
// Codes are grouped by category:
//
// # Catalog Errors (CAT001-CAT099)
//
//	CAT001 - Record not found: No record with this id in the table
//	CAT002 - Table not found: The table is not part of the schema
//	CAT003 - Dataset not loaded: Records have not been fetched yet
//	CAT004 - Schema not found: No schema is registered under this name
//	CAT005 - Invalid request: The request body could not be read
//	CAT006 - Too many imports: Every ISBN import slot is busy
//
// # Airtable Errors (AT001-AT099)
//
//	AT001 - Not authorized: Airtable rejected the API key
//	AT002 - Rate limited: Airtable asked us to slow down
//	AT003 - Invalid formula: A lookup formula was rejected
//	AT004 - Airtable unavailable: The Airtable API could not be reached
//
// # OpenLibrary Errors (OL001-OL099)
//
//	OL001 - Book not found: No book matches the ISBN
//	OL002 - Invalid ISBN: The ISBN is not 10 or 13 characters
//	OL003 - OpenLibrary unavailable: The lookup failed upstream
//
// # Snapshot Errors (SNAP001-SNAP099)
//
//	SNAP001 - Snapshot not found: No archived dataset is available
//	SNAP002 - Database unavailable: The snapshot database could not be reached
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timeout
//
// # Default Error (ERR000)
//
// Fallback when nothing specific matches. Check the logs for the original
// technical error.
//
// # Matching
//
// Sentinel errors are matched first with errors.Is, then message patterns
// case-insensitively with strings.Contains. The first match wins, so more
// specific entries come before general ones.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/shelf/internal/airtable/client"
	"github.com/JonMunkholm/shelf/internal/openlibrary"
	"github.com/JonMunkholm/shelf/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorSentinel struct {
	target error
	msg    UserMessage
}

var errorSentinels = []errorSentinel{
	{ErrRecordNotFound, UserMessage{
		Message: "Record not found",
		Action:  "Check the record id",
		Code:    "CAT001",
	}},
	{ErrTableNotFound, UserMessage{
		Message: "Table not found",
		Action:  "Verify the table name is correct",
		Code:    "CAT002",
	}},
	{ErrNoDataset, UserMessage{
		Message: "Records have not been loaded yet",
		Action:  "Please try again in a few moments",
		Code:    "CAT003",
	}},
	{ErrSchemaNotFound, UserMessage{
		Message: "Schema not found",
		Action:  "Use one of the registered schema names",
		Code:    "CAT004",
	}},
	{ErrInvalidRequest, UserMessage{
		Message: "The request could not be read",
		Action:  "Check the request body",
		Code:    "CAT005",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Too many books are being added right now",
		Action:  "Wait a few seconds and try again",
		Code:    "CAT006",
	}},
	{openlibrary.ErrBookNotFound, UserMessage{
		Message: "Book not found",
		Action:  "Check the ISBN or add the book manually",
		Code:    "OL001",
	}},
	{openlibrary.ErrInvalidISBN, UserMessage{
		Message: "Invalid ISBN",
		Action:  "Enter a 10 or 13 digit ISBN",
		Code:    "OL002",
	}},
	{store.ErrSnapshotNotFound, UserMessage{
		Message: "No archived records are available",
		Action:  "Refresh the records from Airtable",
		Code:    "SNAP001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Please try again later",
		Code:    "REQ002",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "authentication_required",
		msg: UserMessage{
			Message: "Airtable rejected the credentials",
			Action:  "Check AIRTABLE_API_KEY",
			Code:    "AT001",
		},
	},
	{
		pattern: "invalid_permissions",
		msg: UserMessage{
			Message: "Airtable rejected the credentials",
			Action:  "Check the token scopes for this base",
			Code:    "AT001",
		},
	},
	{
		pattern: "rate_limit",
		msg: UserMessage{
			Message: "Airtable is rate limiting requests",
			Action:  "Please wait a moment before trying again",
			Code:    "AT002",
		},
	},
	{
		pattern: "invalid_filter_by_formula",
		msg: UserMessage{
			Message: "A lookup formula was rejected by Airtable",
			Action:  "Check the field names used in the lookup",
			Code:    "AT003",
		},
	},
	{
		pattern: "openlibrary",
		msg: UserMessage{
			Message: "OpenLibrary lookup failed",
			Action:  "Please try again later",
			Code:    "OL003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the snapshot database",
			Action:  "Please try again in a few moments",
			Code:    "SNAP002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ002",
		},
	},
}

var airtableUnavailable = UserMessage{
	Message: "Airtable could not be reached",
	Action:  "Please try again in a few moments",
	Code:    "AT004",
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for nil errors.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range errorSentinels {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return airtableUnavailable
	}

	return defaultMessage
}

// FormatUserError returns a formatted user-friendly error string.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
