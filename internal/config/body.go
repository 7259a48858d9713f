package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a request and keeps the key order of an object body,
// so the request sends its fields in the order the file lists them.
func (rc *RequestConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain RequestConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*rc = RequestConfig(p)

	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "body" {
			continue
		}
		body := resolveAlias(node.Content[i+1])
		if body.Kind != yaml.MappingNode && body.Kind != yaml.SequenceNode {
			return nil
		}
		var buf bytes.Buffer
		if err := writeNodeJSON(&buf, body); err != nil {
			return fmt.Errorf("body: %w", err)
		}
		rc.ordered = buf.Bytes()
	}
	return nil
}

// UnmarshalJSON is the JSON counterpart of UnmarshalYAML.
func (rc *RequestConfig) UnmarshalJSON(data []byte) error {
	type plain RequestConfig
	var aux struct {
		plain
		Body json.RawMessage `json:"body,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*rc = RequestConfig(aux.plain)

	raw := bytes.TrimSpace(aux.Body)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, &rc.Body); err != nil {
		return fmt.Errorf("body: %w", err)
	}
	if raw[0] == '{' || raw[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return fmt.Errorf("body: %w", err)
		}
		rc.ordered = buf.Bytes()
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func writeNodeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNodeJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNodeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return nil
}

// resolveJSON substitutes placeholders inside the string literals of an
// encoded JSON document, escaping each value for its position.
func resolveJSON(doc []byte, values map[string]string) []byte {
	escaped := make(map[string]string, len(values))
	for k, v := range values {
		quoted, _ := json.Marshal(v)
		escaped[k] = strings.TrimSuffix(strings.TrimPrefix(string(quoted), `"`), `"`)
	}
	return []byte(resolve(string(doc), escaped))
}

// bodyStrings calls fn for every string value in a decoded body.
func bodyStrings(v interface{}, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]interface{}:
		for _, val := range t {
			bodyStrings(val, fn)
		}
	case []interface{}:
		for _, val := range t {
			bodyStrings(val, fn)
		}
	}
}
