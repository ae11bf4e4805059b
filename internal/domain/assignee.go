package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AssigneeSet is a deduplicated, insertion-ordered set of user identifiers.
// Stored data may still carry the legacy single-identifier shape; it is
// normalized when decoded so callers only ever see a set.
type AssigneeSet []string

// NewAssigneeSet trims, drops blanks and removes duplicates.
func NewAssigneeSet(ids ...string) AssigneeSet {
	seen := make(map[string]struct{}, len(ids))
	out := make(AssigneeSet, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s AssigneeSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func (s AssigneeSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts an array of strings, a single string, or null.
func (s *AssigneeSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = AssigneeSet{}
		return nil
	}
	switch trimmed[0] {
	case '[':
		var ids []string
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return fmt.Errorf("assignee: %w", err)
		}
		*s = NewAssigneeSet(ids...)
	case '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("assignee: %w", err)
		}
		*s = NewAssigneeSet(id)
	default:
		return fmt.Errorf("assignee: unsupported shape %q", string(trimmed))
	}
	return nil
}

// ParseAssigneeColumn decodes a stored assignee column. Besides JSON it
// accepts a bare identifier, which is how rows written before the set
// representation look.
func ParseAssigneeColumn(raw string) AssigneeSet {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AssigneeSet{}
	}
	var set AssigneeSet
	if err := json.Unmarshal([]byte(raw), &set); err == nil {
		return set
	}
	return NewAssigneeSet(raw)
}
