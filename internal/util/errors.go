package util

import "errors"

var (
	ErrEmptyUserID      = errors.New("userId is required")
	ErrUserIDTooLong    = errors.New("userId must be at most 191 characters")
	ErrInvalidDate      = errors.New("date must be in YYYY-MM-DD format")
	ErrInvalidSteps     = errors.New("steps must be a non-negative integer")
	ErrInvalidDateRange = errors.New("startDate must not be after endDate")
	ErrStepsNotFound    = errors.New("daily steps record not found")
)

// IsValidationError 请求参数类错误，映射为 400
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyUserID) ||
		errors.Is(err, ErrUserIDTooLong) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidSteps) ||
		errors.Is(err, ErrInvalidDateRange)
}
