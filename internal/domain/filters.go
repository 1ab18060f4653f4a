package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Filter is a single (trait name, trait value) pair carried by a token or listing
type Filter struct {
	Name  string
	Value string
}

// String renders the filter in its "Name,Value" wire form
func (f Filter) String() string {
	return fmt.Sprintf("%s,%s", f.Name, f.Value)
}

// ParseFilter parses the "Name,Value" form. The value may itself contain commas.
func ParseFilter(s string) (Filter, bool) {
	name, value, ok := strings.Cut(s, ",")
	if !ok {
		return Filter{}, false
	}
	return Filter{Name: name, Value: value}, true
}

// Filters is the trait index of a token
type Filters struct {
	set OrderedSet[Filter]
}

// Add inserts the filter if absent
func (f *Filters) Add(filter Filter) bool {
	return f.set.Add(filter)
}

// Remove deletes the filter if present
func (f *Filters) Remove(filter Filter) bool {
	return f.set.Remove(filter)
}

// Has reports whether the exact filter is present
func (f *Filters) Has(filter Filter) bool {
	return f.set.Contains(filter)
}

// ValuesOf returns every value recorded for the trait name
func (f *Filters) ValuesOf(name string) []string {
	var values []string
	for _, filter := range f.set.items {
		if filter.Name == name {
			values = append(values, filter.Value)
		}
	}
	return values
}

// All returns the filters in insertion order
func (f *Filters) All() []Filter {
	return f.set.Items()
}

// Len returns the number of filters
func (f *Filters) Len() int {
	return f.set.Len()
}

// Strings returns the filters in "Name,Value" form
func (f *Filters) Strings() []string {
	out := make([]string, 0, f.set.Len())
	for _, filter := range f.set.items {
		out = append(out, filter.String())
	}
	return out
}

// Clone returns an independent copy
func (f *Filters) Clone() Filters {
	return Filters{set: NewOrderedSet(f.set.items...)}
}

func (f Filters) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Strings())
}

func (f *Filters) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.set = OrderedSet[Filter]{}
	for _, s := range raw {
		if filter, ok := ParseFilter(s); ok {
			f.set.Add(filter)
		}
	}
	return nil
}
