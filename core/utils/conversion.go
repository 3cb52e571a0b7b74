package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ToInt converts a directive argument to int using explicit type switching.
// Integer kinds are accepted as-is; strings only when they hold a base-10 integer.
func ToInt(val any) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case int32:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint64:
		return int(v), nil
	case uint32:
		return int(v), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", v)
		}
		return i, nil
	case nil:
		return 0, fmt.Errorf("missing integer value")
	default:
		return 0, fmt.Errorf("expected integer, got %T", val)
	}
}

// ToString converts a directive argument to string.
// Only strings are accepted; numbers are rejected so that `tag 12` is reported.
func ToString(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("missing string value")
	default:
		return "", fmt.Errorf("expected string, got %T", val)
	}
}

// ToBool converts a directive argument to bool.
// It handles bool, the integers 0/1, and the strings "true"/"false"/"1"/"0".
func ToBool(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int, int64, int32:
		i, _ := ToInt(v)
		switch i {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("%d is not a boolean", i)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a boolean", v)
	default:
		return false, fmt.Errorf("expected boolean, got %T", val)
	}
}
