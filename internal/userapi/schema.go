package userapi

import (
	"sort"
	"sync"

	"github.com/xdung24/restload/pkg/jsonschema"
)

// UsersNamespace is the namespace whose documents must be users.
const UsersNamespace = "users"

const userSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"title": "user",
	"type": "object",
	"properties": {
		"firstName": { "type": "string", "minLength": 1 },
		"lastName": { "type": "string", "minLength": 1 },
		"age": { "type": "integer", "minimum": 0, "maximum": 150 }
	},
	"required": ["firstName", "lastName"]
}`

type registeredSchema struct {
	raw      []byte
	compiled *jsonschema.Schema
}

// schemaRegistry maps a namespace to the schema its documents must satisfy.
// Schemas registered at runtime only apply to writes made afterwards.
type schemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]registeredSchema
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		schemas: map[string]registeredSchema{
			UsersNamespace: {
				raw:      []byte(userSchemaJSON),
				compiled: jsonschema.MustCompile(UsersNamespace+".json", userSchemaJSON),
			},
		},
	}
}

// set compiles raw and registers it for namespace. It reports whether the
// namespace had no schema before.
func (r *schemaRegistry) set(namespace string, raw []byte) (bool, error) {
	compiled, err := jsonschema.Compile(namespace+".json", string(raw))
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.schemas[namespace]
	r.schemas[namespace] = registeredSchema{raw: append([]byte(nil), raw...), compiled: compiled}
	return !exists, nil
}

// get returns the source of the schema for namespace.
func (r *schemaRegistry) get(namespace string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[namespace]
	return s.raw, ok
}

// lookup returns the compiled schema for namespace, or nil.
func (r *schemaRegistry) lookup(namespace string) *jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[namespace].compiled
}

func (r *schemaRegistry) remove(namespace string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[namespace]; !ok {
		return false
	}
	delete(r.schemas, namespace)
	return true
}

func (r *schemaRegistry) namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
