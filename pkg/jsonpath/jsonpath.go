// Package jsonpath reads values out of JSON documents with a small JSONPath
// dialect ($.a.b[0], $['a']) on top of gjson.
package jsonpath

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the input document does not parse.
var ErrInvalidJSON = errors.New("invalid JSON document")

// Extract returns the value at path as a string. Objects and arrays come
// back as their raw JSON text, null as "null".
func Extract(doc string, path string) (string, error) {
	if doc == "" {
		return "", fmt.Errorf("empty JSON string")
	}
	if path == "" {
		return "", fmt.Errorf("empty JSONPath expression")
	}

	result := gjson.Get(doc, convertToGjsonPath(path))
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// Project builds a new object holding only the listed fields of doc, keyed
// by the field expression as given. Fields that do not exist are left out.
// An empty field list returns doc unchanged.
func Project(doc []byte, fields []string) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, ErrInvalidJSON
	}
	if len(fields) == 0 {
		return doc, nil
	}

	out := make(map[string]json.RawMessage, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		result := gjson.GetBytes(doc, convertToGjsonPath(f))
		if !result.Exists() {
			continue
		}
		out[strings.TrimPrefix(strings.TrimPrefix(f, "$"), ".")] = json.RawMessage(result.Raw)
	}
	return json.Marshal(out)
}

// Match reports whether doc satisfies a gjson query condition such as
// `age>30` or `name.first=="jack"`. An empty condition matches any valid
// document.
func Match(doc []byte, condition string) (bool, error) {
	if !gjson.ValidBytes(doc) {
		return false, ErrInvalidJSON
	}
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}
	wrapped := make([]byte, 0, len(doc)+2)
	wrapped = append(append(append(wrapped, '['), doc...), ']')
	return gjson.GetBytes(wrapped, "#("+condition+")").Exists(), nil
}

// SplitFields parses a comma separated field list such as "a,b.c".
func SplitFields(s string) []string {
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func convertToGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	path = strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "").Replace(path)
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	return strings.TrimPrefix(path, ".")
}
