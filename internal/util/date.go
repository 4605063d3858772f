package util

import (
	"fmt"
	"time"
)

// NormalizeDate 校验 YYYY-MM-DD 并返回规范形式，2024-02-30 之类的非法日期会被拒绝
func NormalizeDate(s string) (string, error) {
	if len(s) != len(DateFormat) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t.Format(DateFormat), nil
}
