package grading

import (
	"fmt"
	"strings"
)

// ValidateScheme checks rule integrity against the standard answer's points:
// unique rule IDs, non-negative marks, point references that exist, and
// parseable conditions.
func ValidateScheme(scheme Scheme, points []SentencePoint) error {
	if scheme.TotalMarks < 0 {
		return &ValidationError{Field: "totalMarks", Reason: "negative"}
	}
	known := make(map[string]struct{}, len(points))
	for _, p := range points {
		known[p.PointNumber] = struct{}{}
	}
	seen := make(map[string]struct{}, len(scheme.Rules))
	for _, r := range scheme.Rules {
		if r.RuleID == "" {
			return &ValidationError{Field: "ruleId", Reason: "empty"}
		}
		if _, dup := seen[r.RuleID]; dup {
			return &ValidationError{Field: "ruleId", Reason: "duplicate " + r.RuleID}
		}
		seen[r.RuleID] = struct{}{}
		if r.MarksAwarded < 0 {
			return &ValidationError{Field: "marksAwarded", Reason: "negative on rule " + r.RuleID}
		}
		for _, pn := range r.Points {
			if _, ok := known[pn]; !ok {
				return &ValidationError{Field: "points", Reason: fmt.Sprintf("rule %s references unknown point %s", r.RuleID, pn)}
			}
		}
		if err := validateCondition(r, known); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(r MarkingRule, known map[string]struct{}) error {
	cond := strings.TrimSpace(r.Condition)
	switch strings.ToLower(cond) {
	case "", "all", "any":
		if len(r.Points) == 0 {
			return &ValidationError{Field: "condition", Reason: "rule " + r.RuleID + " lists no points"}
		}
		return nil
	}
	for _, clause := range splitExpr(cond) {
		for _, tok := range clause {
			if _, ok := known[tok]; !ok {
				return &ValidationError{Field: "condition", Reason: fmt.Sprintf("rule %s condition references unknown point %s", r.RuleID, tok)}
			}
		}
	}
	return nil
}

// evaluateRules walks the scheme's rules in listed order and sums the awards
// of every satisfied rule. All rules are evaluated; overlapping awards are
// handled by clamping downstream, never by first-satisfied-wins.
func evaluateRules(rules []MarkingRule, matched map[string]bool) (total float64, satisfied []string) {
	for _, r := range rules {
		if ruleSatisfied(r, matched) {
			total += r.MarksAwarded
			satisfied = append(satisfied, r.RuleID)
		}
	}
	return total, satisfied
}

func ruleSatisfied(r MarkingRule, matched map[string]bool) bool {
	cond := strings.TrimSpace(r.Condition)
	switch strings.ToLower(cond) {
	case "", "all":
		for _, pn := range r.Points {
			if !matched[pn] {
				return false
			}
		}
		return len(r.Points) > 0
	case "any":
		for _, pn := range r.Points {
			if matched[pn] {
				return true
			}
		}
		return false
	}
	return evalExpr(cond, matched)
}

// evalExpr evaluates a flat AND/OR expression over point numbers, e.g.
// "P1 AND P2 OR P4". AND binds tighter than OR; no parentheses. Operators are
// case-insensitive and "&&"/"||" are accepted as synonyms.
func evalExpr(expr string, matched map[string]bool) bool {
	for _, clause := range splitExpr(expr) {
		ok := len(clause) > 0
		for _, tok := range clause {
			if !matched[tok] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// splitExpr tokenizes into OR-separated clauses of AND-joined point numbers.
func splitExpr(expr string) [][]string {
	fields := strings.Fields(expr)
	var clauses [][]string
	var cur []string
	for _, f := range fields {
		switch strings.ToLower(f) {
		case "or", "||":
			clauses = append(clauses, cur)
			cur = nil
		case "and", "&&":
			// conjunction continues the clause
		default:
			cur = append(cur, f)
		}
	}
	clauses = append(clauses, cur)
	return clauses
}
