// Package schema validates message descriptor shapes against the rule set
// registered for their method tag.
//
// Rules operate on a generic shape (string-keyed map), not on concrete
// structs, so the same registry serves externally received messages whose
// descriptors may carry fields this version does not know about.
package schema

import (
	"fmt"
	"sort"

	"recnode.dev/recnode/records"
)

// Rule is an explicit, named shape rule.
//
// ID must be stable across versions.
// Apply must be deterministic and side-effect free.
type Rule struct {
	ID    string
	Apply func(shape map[string]any) error
}

var registry = map[string][]Rule{
	records.MethodRecordsWrite: recordsWriteRules(),
}

// Methods returns the registered method tags in sorted order.
func Methods() []string {
	out := make([]string, 0, len(registry))
	for m := range registry {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Validate runs the rule set registered for method against the descriptor
// shape, in order, returning the first violation as a KindValidation error.
// An unregistered method is itself a validation failure.
func Validate(method string, shape map[string]any) error {
	rules, ok := registry[method]
	if !ok {
		return records.NewError(records.KindValidation, "REC-VAL-001", fmt.Sprintf("no schema registered for method %q", method))
	}
	for _, r := range rules {
		if r.Apply == nil {
			return records.NewError(records.KindInternal, "REC-INTERNAL-001", "nil rule Apply")
		}
		if err := r.Apply(shape); err != nil {
			return err
		}
	}
	return nil
}

// Standard adapts the package registry to the records.SchemaValidator
// interface consumed by the write builder and the node.
type Standard struct{}

func (Standard) Validate(method string, shape map[string]any) error {
	return Validate(method, shape)
}

func requiredString(ruleID, key string) Rule {
	return Rule{ID: ruleID, Apply: func(shape map[string]any) error {
		v, ok := shape[key]
		if !ok {
			return records.NewError(records.KindValidation, ruleID, fmt.Sprintf("missing required field: %s", key))
		}
		s, ok := v.(string)
		if !ok {
			return records.NewError(records.KindValidation, ruleID, fmt.Sprintf("field %s must be a string", key))
		}
		if s == "" {
			return records.NewError(records.KindValidation, ruleID, fmt.Sprintf("field %s must be non-empty", key))
		}
		return nil
	}}
}

func noNullFields(ruleID string) Rule {
	return Rule{ID: ruleID, Apply: func(shape map[string]any) error {
		// Deterministic key order for stable first-violation reporting.
		keys := make([]string, 0, len(shape))
		for k := range shape {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if shape[k] == nil {
				return records.NewError(records.KindValidation, ruleID, fmt.Sprintf("field %s present as null; absent fields must be omitted", k))
			}
		}
		return nil
	}}
}

func recordsWriteRules() []Rule {
	return []Rule{
		noNullFields("REC-VAL-100"),
		requiredString("REC-VAL-101", "target"),
		requiredString("REC-VAL-102", "recipient"),
		requiredString("REC-VAL-103", "method"),
		requiredString("REC-VAL-104", "recordId"),
		requiredString("REC-VAL-105", "nonce"),
		requiredString("REC-VAL-106", "dataCid"),
		requiredString("REC-VAL-107", "dataFormat"),
		{ID: "REC-VAL-110", Apply: func(shape map[string]any) error {
			if _, ok := shape["dateCreated"]; !ok {
				return records.NewError(records.KindValidation, "REC-VAL-110", "missing required field: dateCreated")
			}
			switch shape["dateCreated"].(type) {
			case int64, uint64, int, float64:
				return nil
			default:
				return records.NewError(records.KindValidation, "REC-VAL-110", "field dateCreated must be an integer")
			}
		}},
		{ID: "REC-VAL-111", Apply: func(shape map[string]any) error {
			if v, ok := shape["published"]; ok {
				if _, isBool := v.(bool); !isBool {
					return records.NewError(records.KindValidation, "REC-VAL-111", "field published must be a boolean")
				}
			}
			return nil
		}},
		{ID: "REC-VAL-112", Apply: func(shape map[string]any) error {
			if v, ok := shape["method"]; ok {
				if s, isStr := v.(string); isStr && s != records.MethodRecordsWrite {
					return records.NewError(records.KindValidation, "REC-VAL-112", fmt.Sprintf("method mismatch: %q", s))
				}
			}
			return nil
		}},
	}
}
