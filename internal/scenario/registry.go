package scenario

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownScenario is returned when a name is not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

// Factory builds a scenario for a target.
type Factory func(Target) (*Scenario, error)

var registry = map[string]Factory{
	GetUserName:    GetUser,
	UpsertUserName: UpsertUser,
}

// Names returns the registered scenario names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}

// New builds the named scenario for t.
func New(name string, t Target) (*Scenario, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownScenario, name, Names())
	}
	return f(t)
}
