package config

import (
	"fmt"
	"sort"
	"strings"
)

// ExclusionSet holds project names that are skipped entirely.
type ExclusionSet map[string]struct{}

// ParseExclusionSet parses a list of the form "name1","name2". Every name
// must be double quoted and non-empty; names are separated by a single
// comma, optionally surrounded by spaces. An empty input yields an empty
// set.
func ParseExclusionSet(s string) (ExclusionSet, error) {
	set := ExclusionSet{}
	rest := strings.TrimSpace(s)
	if rest == "" {
		return set, nil
	}

	pos := len(s) - len(strings.TrimLeft(s, " \t"))
	for {
		if rest[0] != '"' {
			return nil, fmt.Errorf("offset %d: expected '\"', found %q", pos, rest[0])
		}
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return nil, fmt.Errorf("offset %d: unterminated quoted name", pos)
		}
		name := rest[1 : end+1]
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("offset %d: empty project name", pos)
		}
		set[name] = struct{}{}

		consumed := end + 2
		after := strings.TrimLeft(rest[consumed:], " \t")
		pos += consumed + len(rest[consumed:]) - len(after)
		rest = after
		if rest == "" {
			return set, nil
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("offset %d: expected ',', found %q", pos, rest[0])
		}

		after = strings.TrimLeft(rest[1:], " \t")
		pos += 1 + len(rest[1:]) - len(after)
		rest = after
		if rest == "" {
			return nil, fmt.Errorf("offset %d: trailing comma", pos)
		}
	}
}

func (s ExclusionSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the set members in lexical order.
func (s ExclusionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
