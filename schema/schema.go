// Package schema rebuilds class layouts from the target's runtime reflection
// registry: scopes hold classes, classes hold named field offsets.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"memsync/process"
	"memsync/signature"
)

var (
	ErrRegistryNotFound = errors.New("schema registry not found")
	ErrScopeNotFound    = errors.New("schema scope not found")
	ErrClassNotFound    = errors.New("schema class not found")
	ErrFieldNotFound    = errors.New("schema field not found")
)

// Registry maps scope names to scopes.
type Registry struct {
	scopes map[string]*Scope
	Stats  Stats
}

// Stats counts what a walk saw. Skipped counts branches abandoned because
// of unreadable or implausible data.
type Stats struct {
	Scopes  int
	Classes int
	Fields  int
	Skipped int
}

type Scope struct {
	Name    string
	classes map[string]*Class
}

// Class is one reflected type. Field offsets are relative to an instance.
type Class struct {
	Name   string
	Size   int32
	Fields map[string]process.ProcessMemorySize
}

// Scope returns the scope registered under name, usually a module file name
// such as "libclient.so".
func (r *Registry) Scope(name string) (*Scope, error) {
	s, ok := r.scopes[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrScopeNotFound)
	}
	return s, nil
}

// Scopes returns the sorted scope names.
func (r *Registry) Scopes() []string {
	names := make([]string, 0, len(r.scopes))
	for name := range r.scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scope) Class(name string) (*Class, error) {
	c, ok := s.classes[name]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, s.Name, ErrClassNotFound)
	}
	return c, nil
}

// Classes returns the sorted class names.
func (s *Scope) Classes() []string {
	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field returns the offset of class.field.
func (s *Scope) Field(class, field string) (process.ProcessMemorySize, error) {
	c, err := s.Class(class)
	if err != nil {
		return 0, err
	}
	return c.Field(field)
}

func (c *Class) Field(name string) (process.ProcessMemorySize, error) {
	off, ok := c.Fields[name]
	if !ok {
		return 0, fmt.Errorf("%s.%s: %w", c.Name, name, ErrFieldNotFound)
	}
	return off, nil
}

// FieldNames returns the field names ordered by offset, then name.
func (c *Class) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, oj := c.Fields[names[i]], c.Fields[names[j]]
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}

// Root locates the registry root by its code reference in the schema module.
func Root(proc process.Process, module string, layout Layout) (process.ProcessMemoryAddress, error) {
	p, err := signature.Parse(layout.Pattern)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegistryNotFound, err)
	}
	root, err := signature.Resolve(proc, p, module, layout.PatternOperand, layout.PatternLength)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegistryNotFound, err)
	}
	return root, nil
}
