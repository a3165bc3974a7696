// Package rules evaluates user-defined notification rules against alert events.
package rules

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
)

// ConditionType selects how a rule matches an event.
type ConditionType string

const (
	ConditionObjectClass    ConditionType = "object_class"
	ConditionDetectionCount ConditionType = "detection_count"
	ConditionTimeRange      ConditionType = "time_range"
	ConditionConfidence     ConditionType = "confidence"
)

// Action is the outcome of a matching rule.
type Action string

const (
	ActionNotify   Action = "notify"
	ActionSuppress Action = "suppress"
	ActionEscalate Action = "escalate"
)

// Condition holds the typed parameters of a rule; only the fields of the
// rule's condition type are meaningful.
type Condition struct {
	// object_class
	Classes []string `json:"classes,omitempty"`
	// detection_count
	Threshold int `json:"threshold,omitempty"`
	// time_range, [StartHour, EndHour); wraps midnight when StartHour > EndHour
	StartHour int `json:"start_hour,omitempty"`
	EndHour   int `json:"end_hour,omitempty"`
	// confidence
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// Rule is a user-defined conditional rule.
type Rule struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Name          string        `json:"name"`
	ConditionType ConditionType `json:"condition_type"`
	Condition     Condition     `json:"condition_value"`
	Action        Action        `json:"action"`
	Priority      int           `json:"priority"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r *Rule) Clone() *Rule {
	out := *r
	out.Condition.Classes = slices.Clone(r.Condition.Classes)
	return &out
}

// Matches reports whether the rule's condition holds for event. Inactive
// rules never match.
func (r *Rule) Matches(event *alert.Event) bool {
	if !r.IsActive {
		return false
	}
	c := r.Condition
	switch r.ConditionType {
	case ConditionObjectClass:
		for _, obj := range event.DetectedObjects {
			for _, class := range c.Classes {
				if strings.EqualFold(obj.Class, class) {
					return true
				}
			}
		}
		return false
	case ConditionDetectionCount:
		return c.Threshold > 0 && len(event.DetectedObjects) >= c.Threshold
	case ConditionTimeRange:
		return hourInRange(event.OccurredAt.Hour(), c.StartHour, c.EndHour)
	case ConditionConfidence:
		for _, obj := range event.DetectedObjects {
			if obj.Confidence >= c.MinConfidence {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func hourInRange(hour, start, end int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}

// SortByPriority returns a copy of rules ordered by descending priority.
// Ties keep creation order, then input order.
func SortByPriority(rules []Rule) []Rule {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// Evaluate returns the action of the highest-priority active rule matching
// event, or notify when none matches.
func Evaluate(rules []Rule, event *alert.Event) Action {
	action, _ := EvaluateWithMatch(rules, event)
	return action
}

// EvaluateWithMatch is Evaluate that also returns the matching rule, nil when
// the default applied.
func EvaluateWithMatch(rules []Rule, event *alert.Event) (Action, *Rule) {
	for _, rule := range SortByPriority(rules) {
		if rule.Matches(event) {
			return rule.Action, &rule
		}
	}
	return ActionNotify, nil
}

// Validate rejects malformed rules before they are stored.
func Validate(rule *Rule) error {
	var errs []error
	if rule.UserID == "" {
		errs = append(errs, errors.New("user_id is required"))
	}
	switch rule.Action {
	case ActionNotify, ActionSuppress, ActionEscalate:
	default:
		errs = append(errs, fmt.Errorf("unknown action %q", rule.Action))
	}

	c := rule.Condition
	switch rule.ConditionType {
	case ConditionObjectClass:
		if len(c.Classes) == 0 {
			errs = append(errs, errors.New("object_class condition requires at least one class"))
		}
		for i, class := range c.Classes {
			if strings.TrimSpace(class) == "" {
				errs = append(errs, fmt.Errorf("classes[%d] is empty", i))
			}
		}
	case ConditionDetectionCount:
		if c.Threshold < 1 {
			errs = append(errs, errors.New("detection_count threshold must be at least 1"))
		}
	case ConditionTimeRange:
		if c.StartHour < 0 || c.StartHour > 23 || c.EndHour < 0 || c.EndHour > 23 {
			errs = append(errs, errors.New("time_range hours must be within 0-23"))
		} else if c.StartHour == c.EndHour {
			errs = append(errs, errors.New("time_range start_hour and end_hour must differ"))
		}
	case ConditionConfidence:
		if c.MinConfidence < 0 || c.MinConfidence > 1 {
			errs = append(errs, errors.New("confidence min_confidence must be within 0-1"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown condition_type %q", rule.ConditionType))
	}
	return errors.Join(errs...)
}
