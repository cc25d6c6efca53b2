package inventory

// # Error Codes Reference
//
// User-facing messages carry a code that users can quote to support.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Missing column: a required column is absent from the header
//	IMP002 - Empty file: no data rows after the header
//	IMP003 - Unknown import kind
//	IMP004 - Invalid workbook: the XLSX file could not be read
//	IMP005 - Busy: every import slot is taken
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date
//	VAL002 - Invalid counter: not a whole number
//	VAL003 - Required field is empty
//	VAL004 - Invalid color
//	VAL005 - Invalid quantity
//	VAL006 - Duplicate code
//	VAL007 - Malformed request: unreadable body or id
//
// # Store Errors (DB001-DB099)
//
//	DB001 - Unique violation (23505)
//	DB002 - Referenced record (23503): shown with the store's own message
//	DB003 - Not found
//	DB004 - Connection refused
//	DB005 - Timeout
//	DB006 - Backup failed
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - No file provided
//	FILE003 - Unsupported file type
//
// # Session Errors (AUTH001-AUTH099)
//
//	AUTH001 - Not authenticated
//	AUTH002 - Invalid credentials
//	AUTH003 - Sign-in handled by the external identity provider
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/partlog/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Import Errors (IMP001-IMP005)
	// =========================================================================
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "A required column is missing from the file",
			Action:  "Download the template and compare the header row",
			Code:    "IMP001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Add at least one row below the header",
			Code:    "IMP002",
		},
	},
	{
		pattern: "unknown import kind",
		msg: UserMessage{
			Message: "Unknown import type",
			Action:  "Choose printers or spare parts",
			Code:    "IMP003",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "The workbook could not be read",
			Action:  "Save the file as .xlsx or export it to CSV",
			Code:    "IMP004",
		},
	},
	{
		pattern: "too many imports running",
		msg: UserMessage{
			Message: "Other imports are still running",
			Action:  "Wait a moment and upload the file again",
			Code:    "IMP005",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL007)
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date",
			Action:  "Use the YYYY-MM-DD format",
			Code:    "VAL001",
		},
	},
	{
		pattern: "counter must be a whole number",
		msg: UserMessage{
			Message: "The counter must be a whole number",
			Action:  "Enter digits only, without separators",
			Code:    "VAL002",
		},
	},
	{
		pattern: "is required",
		msg: UserMessage{
			Message: "A required field is empty",
			Action:  "Fill in every required field",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid color",
		msg: UserMessage{
			Message: "Invalid color",
			Action:  "Use a hex color such as #3b82f6",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid quantity",
		msg: UserMessage{
			Message: "Invalid quantity",
			Action:  "Enter a whole number of at least 1",
			Code:    "VAL005",
		},
	},
	{
		pattern: "already exists",
		msg: UserMessage{
			Message: "A spare part with that code already exists",
			Action:  "Use a different code or edit the existing part",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Reload the page and try again",
			Code:    "VAL007",
		},
	},

	// =========================================================================
	// Store Errors (DB001-DB006)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this value already exists",
			Action:  "Check for duplicate entries",
			Code:    "DB001",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "The record no longer exists",
			Action:  "Reload the page",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the data store",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "backup:",
		msg: UserMessage{
			Message: "The backup could not be created",
			Action:  "Please try again; no partial file was produced",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE003)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE003",
		},
	},

	// =========================================================================
	// Session Errors (AUTH001-AUTH003)
	// =========================================================================
	{
		pattern: "not authenticated",
		msg: UserMessage{
			Message: "Your session has expired",
			Action:  "Sign in again",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "invalid login credentials",
		msg: UserMessage{
			Message: "Invalid email or password",
			Action:  "Check your credentials and try again",
			Code:    "AUTH002",
		},
	},
	{
		pattern: "sign in is not available",
		msg: UserMessage{
			Message: "Sign in through your organization's login page",
			Action:  "Use the link provided by your administrator",
			Code:    "AUTH003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Structural import errors keep their own text. Store errors that are not
// uniqueness violations are shown with the store's message verbatim, so a
// referential-integrity failure reads exactly as the store reported it.
// Everything else is matched against the pattern table.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var se *StructuralError
	if errors.As(err, &se) {
		msg := lookupPattern(se.Message)
		msg.Message = se.Message
		if t, ok := Lookup(se.Kind); ok && msg.Code == "IMP001" {
			msg.Action = fmt.Sprintf("%s. Required columns: %s", msg.Action, strings.Join(t.RequiredColumns(), ", "))
		}
		return msg
	}

	var ce *CascadeError
	if errors.As(err, &ce) {
		return UserMessage{
			Message: ce.Error(),
			Action:  "The printer was not deleted; please try again",
			Code:    "DB002",
		}
	}

	if storeErr, ok := asStoreError(err); ok {
		switch {
		case store.IsUniqueViolation(err):
			if m := lookupPattern(err.Error()); m.Code != defaultMessage.Code {
				return m
			}
		default:
			if m := lookupPattern(storeErr.Message); strings.HasPrefix(m.Code, "AUTH") {
				return m
			}
			return UserMessage{
				Message: storeErr.Message,
				Action:  storeAction(storeErr),
				Code:    storeCode(storeErr),
			}
		}
	}

	return lookupPattern(err.Error())
}

func lookupPattern(s string) UserMessage {
	errStr := strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func storeCode(e *store.Error) string {
	if e.Code == store.CodeForeignKeyViolation {
		return "DB002"
	}
	if e.Code != "" {
		return "DB-" + e.Code
	}
	return "DB000"
}

func storeAction(e *store.Error) string {
	if e.Code == store.CodeForeignKeyViolation {
		return "Delete the records that reference it first"
	}
	if e.Hint != "" {
		return e.Hint
	}
	return "Please try again"
}

func asStoreError(err error) (*store.Error, bool) {
	var se *store.Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
