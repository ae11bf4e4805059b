package config

import (
	"fmt"
	"strings"
)

// StatusSet is the ordered status enumeration tasks draw from.
type StatusSet struct {
	items []Status
	index map[string]int
}

func NewStatusSet(items []Status) (StatusSet, error) {
	if len(items) == 0 {
		return StatusSet{}, fmt.Errorf("config.statuses must not be empty")
	}
	set := StatusSet{index: make(map[string]int, len(items))}
	for i, st := range items {
		key := strings.TrimSpace(st.Key)
		if key == "" {
			return StatusSet{}, fmt.Errorf("config.statuses[%d].key is required", i)
		}
		if _, dup := set.index[key]; dup {
			return StatusSet{}, fmt.Errorf("config.statuses[%d].key %q is duplicated", i, key)
		}
		label := strings.TrimSpace(st.Label)
		if label == "" {
			label = key
		}
		set.index[key] = len(set.items)
		set.items = append(set.items, Status{Key: key, Label: label})
	}
	return set, nil
}

func (s StatusSet) Valid(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Default is the status assigned to tasks created without one.
func (s StatusSet) Default() string {
	if len(s.items) == 0 {
		return ""
	}
	return s.items[0].Key
}

// Normalize trims the key and maps empty to the default. ok is false for
// unknown keys.
func (s StatusSet) Normalize(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return s.Default(), true
	}
	return key, s.Valid(key)
}

func (s StatusSet) Keys() []string {
	out := make([]string, 0, len(s.items))
	for _, st := range s.items {
		out = append(out, st.Key)
	}
	return out
}

func (s StatusSet) Labels() map[string]string {
	out := make(map[string]string, len(s.items))
	for _, st := range s.items {
		out[st.Key] = st.Label
	}
	return out
}
