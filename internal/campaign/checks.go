package campaign

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Check asserts on a JSON response body.
type Check struct {
	// Path is a JSONPath ($.items[0].id) or a native gjson path
	Path string

	// Equals compares the string form of the value when set
	Equals *string

	// Exists requires the path to be present (or absent when false)
	Exists *bool
}

// ErrCheckFailed is wrapped by every failing check.
var ErrCheckFailed = errors.New("check failed")

func runChecks(checks []Check, body []byte) error {
	for _, check := range checks {
		if err := check.evaluate(body); err != nil {
			return err
		}
	}
	return nil
}

func (c Check) evaluate(body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: %s: response body is not valid JSON", ErrCheckFailed, c.Path)
	}

	result := gjson.GetBytes(body, gjsonPath(c.Path))

	if c.Exists != nil && result.Exists() != *c.Exists {
		if *c.Exists {
			return fmt.Errorf("%w: %s: path not found", ErrCheckFailed, c.Path)
		}
		return fmt.Errorf("%w: %s: path should not exist", ErrCheckFailed, c.Path)
	}

	if c.Equals != nil {
		if !result.Exists() {
			return fmt.Errorf("%w: %s: path not found", ErrCheckFailed, c.Path)
		}
		if got := result.String(); got != *c.Equals {
			return fmt.Errorf("%w: %s: got %q, want %q", ErrCheckFailed, c.Path, got, *c.Equals)
		}
	}

	// A bare path is an existence check
	if c.Equals == nil && c.Exists == nil && !result.Exists() {
		return fmt.Errorf("%w: %s: path not found", ErrCheckFailed, c.Path)
	}
	return nil
}

func lookupJSON(body []byte, path string) (gjson.Result, error) {
	result := gjson.GetBytes(body, gjsonPath(path))
	if !result.Exists() {
		return result, fmt.Errorf("path not found: %s", path)
	}
	return result, nil
}

// gjsonPath converts a JSONPath expression to the gjson syntax:
// $.users[0].name becomes users.0.name.
func gjsonPath(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}

	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	var b strings.Builder
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				b.WriteString(path[i:])
				return b.String()
			}
			key := strings.Trim(path[i+1:i+end], `'"`)
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(key)
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
