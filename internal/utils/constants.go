package utils

const (
	StatusSuccess = "success"
	StatusError   = "error"

	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrUnauthorized     = "Unauthorized"
	ErrForbidden        = "Forbidden"

	// OTPLength is the number of digits in a ride's start code.
	OTPLength = 4

	ContextUserID = "user_id"
	ContextRole   = "role"
)
