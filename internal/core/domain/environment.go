package domain

import "sort"

// Environment is the immutable set of variables injected into a container
// when it is created.
type Environment struct {
	vars map[string]string
}

// NewEnvironment copies vars into a new Environment.
func NewEnvironment(vars map[string]string) Environment {
	cp := make(map[string]string, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return Environment{vars: cp}
}

// Len returns the number of variables.
func (e Environment) Len() int { return len(e.vars) }

// Lookup returns the value for key and whether it is part of the environment.
func (e Environment) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Keys returns the variable names in sorted order.
func (e Environment) Keys() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pairs returns the variables as sorted KEY=VALUE strings.
func (e Environment) Pairs() []string {
	keys := e.Keys()
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e.vars[k])
	}
	return pairs
}
