package resolve

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Payload mining walks caller-supplied nested structures (decoded JSON
// message threads, webhook bodies) looking for conversation identity. A UUID
// found anywhere wins; otherwise legacy-id/slug candidates are collected for
// the caller to push back through the direct tiers.

const mineMaxDepth = 6
const mineMaxCandidates = 16

var embeddedUUIDPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Field names that carry a conversation UUID directly.
var uuidFieldNames = map[string]struct{}{
	"conversation_uuid": {},
	"conversationuuid":  {},
	"conversation_id":   {},
	"conversationid":    {},
	"conv_uuid":         {},
	"uuid":              {},
}

// Field names whose values are id/slug candidates worth re-resolving.
var candidateFieldNames = map[string]struct{}{
	"legacy_id":         {},
	"legacyid":          {},
	"conversation":      {},
	"conversation_slug": {},
	"slug":              {},
	"thread_id":         {},
	"threadid":          {},
	"id":                {},
}

type mined struct {
	uuid       string
	candidates []string
}

type miner struct {
	seen   map[uintptr]struct{}
	result mined
}

// minePayload walks payload breadth-bounded (depth cap, cycle guard) and
// returns the first UUID found by priority: uuid-bearing field names, then
// UUIDs embedded in free text (URLs, HTML). Id and slug candidates are
// collected along the way.
func minePayload(payload any) mined {
	m := &miner{seen: map[uintptr]struct{}{}}
	m.walk(payload, "", 0)
	return m.result
}

func (m *miner) walk(v any, field string, depth int) {
	if v == nil || m.result.uuid != "" || depth > mineMaxDepth {
		return
	}

	switch t := v.(type) {
	case string:
		m.inspectString(t, field)
		return
	case float64, int, int64:
		m.inspectNumber(t, field)
		return
	case bool:
		return
	case map[string]any:
		if !m.mark(reflect.ValueOf(t).Pointer()) {
			return
		}
		// Prioritized pass: uuid-bearing fields before anything else.
		for k, val := range t {
			if _, ok := uuidFieldNames[normalizeField(k)]; ok {
				m.walk(val, k, depth+1)
				if m.result.uuid != "" {
					return
				}
			}
		}
		for k, val := range t {
			m.walk(val, k, depth+1)
			if m.result.uuid != "" {
				return
			}
		}
		return
	case []any:
		if len(t) > 0 && !m.mark(reflect.ValueOf(t).Pointer()) {
			return
		}
		for _, val := range t {
			m.walk(val, field, depth+1)
			if m.result.uuid != "" {
				return
			}
		}
		return
	}

	// Anything else (typed structs, maps with non-string keys) is flattened
	// through reflection one level at a time.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return
		}
		m.walk(rv.Elem().Interface(), field, depth)
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Field(i).CanInterface() {
				continue
			}
			m.walk(rv.Field(i).Interface(), rt.Field(i).Name, depth+1)
			if m.result.uuid != "" {
				return
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			m.walk(rv.Index(i).Interface(), field, depth+1)
			if m.result.uuid != "" {
				return
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			key := ""
			if iter.Key().Kind() == reflect.String {
				key = iter.Key().String()
			}
			m.walk(iter.Value().Interface(), key, depth+1)
			if m.result.uuid != "" {
				return
			}
		}
	}
}

func (m *miner) inspectString(s, field string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	norm := normalizeField(field)
	if _, ok := uuidFieldNames[norm]; ok {
		if u := embeddedUUIDPattern.FindString(s); u != "" {
			m.result.uuid = u
			return
		}
	}
	// Free text: URLs, HTML fragments, anything with a UUID inside.
	if u := embeddedUUIDPattern.FindString(s); u != "" {
		m.result.uuid = u
		return
	}
	if _, ok := candidateFieldNames[norm]; ok {
		m.addCandidate(s)
	}
}

func (m *miner) inspectNumber(v any, field string) {
	if _, ok := candidateFieldNames[normalizeField(field)]; !ok {
		return
	}
	switch n := v.(type) {
	case float64:
		if n > 0 && n == float64(int64(n)) {
			m.addCandidate(strconv.FormatInt(int64(n), 10))
		}
	case int:
		if n > 0 {
			m.addCandidate(strconv.FormatInt(int64(n), 10))
		}
	case int64:
		if n > 0 {
			m.addCandidate(strconv.FormatInt(n, 10))
		}
	}
}

func (m *miner) addCandidate(s string) {
	if len(m.result.candidates) >= mineMaxCandidates {
		return
	}
	for _, existing := range m.result.candidates {
		if existing == s {
			return
		}
	}
	m.result.candidates = append(m.result.candidates, s)
}

// mark records a container address in the seen-set; false means we've been
// here before (cycle).
func (m *miner) mark(ptr uintptr) bool {
	if ptr == 0 {
		return true
	}
	if _, ok := m.seen[ptr]; ok {
		return false
	}
	m.seen[ptr] = struct{}{}
	return true
}

func normalizeField(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
