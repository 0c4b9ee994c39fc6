package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgInvalidEventID     = "Invalid event ID"
	ErrMsgInvalidID          = "Invalid ID"
	ErrMsgInternal           = "Internal server error"
	ErrMsgExternal           = "External service unavailable, please try again later"
)

// API path constants
const (
	APIBasePath     = "/api/v1"
	AuthAPIBasePath = APIBasePath + "/auth"
)
