package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
)

// DecodeError reports a document that is not a single JSON object.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return errors.ErrInvalidJSON.Error() + ": " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return errors.ErrInvalidJSON
}

// Decode parses a single JSON object. Numbers are kept as json.Number so
// values pass through a decode/encode cycle unchanged.
func Decode(data []byte) (map[string]interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var result map[string]interface{}
	if err := decoder.Decode(&result); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	if result == nil {
		return nil, &DecodeError{Reason: "document is null"}
	}

	// Reject trailing content after the top-level object
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != io.EOF {
		return nil, &DecodeError{Reason: "unexpected data after top-level value"}
	}

	return result, nil
}

// GetValue retrieves a value from JSON using a dot-notation path
func GetValue(data map[string]interface{}, path string) (interface{}, bool) {
	keys := strings.Split(path, ".")
	current := data

	for i, key := range keys {
		if i == len(keys)-1 {
			val, ok := current[key]
			return val, ok
		}

		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// GetString returns the string at path, or "" when it is absent or not a string
func GetString(data map[string]interface{}, path string) string {
	val, ok := GetValue(data, path)
	if !ok {
		return ""
	}
	s, _ := val.(string)
	return s
}

// SetValue sets a value in JSON using a dot-notation path
func SetValue(data map[string]interface{}, path string, value interface{}) error {
	if data == nil {
		return fmt.Errorf("%w: nil document", errors.ErrInvalidArgument)
	}

	keys := strings.Split(path, ".")
	current := data

	for i, key := range keys {
		if i == len(keys)-1 {
			current[key] = value
			return nil
		}

		next, ok := current[key].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[key] = next
		}
		current = next
	}
	return nil
}
