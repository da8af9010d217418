// Package registry holds the declarative list of sensor fields the server
// accepts. The registry is loaded and validated once at startup and is
// immutable afterwards; field names become column names in the readings table.
package registry

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// fieldPattern is the set of safe SQL identifiers we allow as sensor fields:
// lowercase letter first, then lowercase letters, digits and underscores.
var fieldPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Descriptor describes one sensor: the form/JSON field name clients post,
// a human-readable display name, and the unit shown on the dashboard.
type Descriptor struct {
	Field string `yaml:"field"`
	Name  string `yaml:"name"`
	Unit  string `yaml:"unit"`
}

// Registry is an ordered, validated set of sensor descriptors.
type Registry struct {
	descriptors []Descriptor
	fields      map[string]struct{}
}

// New validates descriptors and builds a Registry.
func New(descriptors []Descriptor) (*Registry, error) {
	if err := Validate(descriptors); err != nil {
		return nil, err
	}
	fields := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		fields[d.Field] = struct{}{}
	}
	return &Registry{descriptors: descriptors, fields: fields}, nil
}

// Validate checks that every field name is a safe identifier and that no two
// descriptors share a field. A failure here must block startup.
func Validate(descriptors []Descriptor) error {
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if !fieldPattern.MatchString(d.Field) {
			return fmt.Errorf("invalid sensor field name %q: must start with a lowercase letter and contain only lowercase letters, numbers, and underscores", d.Field)
		}
		if _, dup := seen[d.Field]; dup {
			return fmt.Errorf("duplicate sensor field name %q", d.Field)
		}
		seen[d.Field] = struct{}{}
	}
	return nil
}

// Load reads a YAML list of descriptors from path and validates it.
func Load(path string) (*Registry, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sensors file: %w", err)
	}
	var descriptors []Descriptor
	if err := yaml.Unmarshal(body, &descriptors); err != nil {
		return nil, fmt.Errorf("parse sensors file %s: %w", path, err)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("sensors file %s: no sensors defined", path)
	}
	return New(descriptors)
}

// Default returns the built-in registry used when no sensors file is
// configured. Run the discovery tool and paste its output into a sensors
// file to replace it.
func Default() *Registry {
	r, err := New([]Descriptor{
		{Field: "outside_temp", Name: "Outside Temperature", Unit: "°C"},
		{Field: "outside_humidity", Name: "Outside Humidity", Unit: "%"},
		{Field: "master_bedroom_temp", Name: "Master Bedroom Temperature", Unit: "°C"},
		{Field: "master_bedroom_humidity", Name: "Master Bedroom Humidity", Unit: "%"},
		{Field: "library_temp", Name: "Library Temperature", Unit: "°C"},
		{Field: "library_humidity", Name: "Library Humidity", Unit: "%"},
		{Field: "kitchen_temp", Name: "Kitchen Temperature", Unit: "°C"},
		{Field: "kitchen_humidity", Name: "Kitchen Humidity", Unit: "%"},
		{Field: "living_room_temp", Name: "Living Room Temperature", Unit: "°C"},
		{Field: "living_room_humidity", Name: "Living Room Humidity", Unit: "%"},
		{Field: "co2_level", Name: "CO2 Level", Unit: "ppm"},
	})
	if err != nil {
		panic(err) // built-in list is validated by tests
	}
	return r
}

// Descriptors returns the descriptors in declaration order. Callers must not
// modify the returned slice.
func (r *Registry) Descriptors() []Descriptor {
	return r.descriptors
}

// Fields returns the field names in declaration order.
func (r *Registry) Fields() []string {
	out := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d.Field)
	}
	return out
}

// Contains reports whether field is a registered sensor field.
func (r *Registry) Contains(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	return len(r.descriptors)
}
