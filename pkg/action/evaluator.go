package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
)

// Source-level fields are read from the source score; finding-level fields
// must hold together on at least one finding.
var (
	sourceFields = map[string]bool{
		"ess_label":     true,
		"ess_score":     true,
		"channel":       true,
		"finding_count": true,
		"toxic_combo":   true,
	}
	findingFields = map[string]bool{
		"category":   true,
		"tier":       true,
		"risk":       true,
		"confidence": true,
	}
	operators = map[string]bool{
		"eq": true, "ne": true, "in": true, "contains": true,
		"gt": true, "gte": true, "lt": true, "lte": true,
	}
)

// validateCondition rejects unknown fields and operators.
func validateCondition(cond Condition) error {
	if !sourceFields[cond.Field] && !findingFields[cond.Field] {
		return fmt.Errorf("unsupported field: %s", cond.Field)
	}
	if !operators[cond.Operator] {
		return fmt.Errorf("unsupported operator: %s", cond.Operator)
	}
	return nil
}

// sourceFieldValue extracts a source-level field.
func sourceFieldValue(field string, req *EvaluateRequest) string {
	switch field {
	case "ess_label":
		return string(req.Score.Label)
	case "ess_score":
		return strconv.FormatFloat(req.Score.Score, 'f', -1, 64)
	case "channel":
		return string(score.ParseChannel(req.Channel))
	case "finding_count":
		return strconv.Itoa(req.Score.FindingCount)
	case "toxic_combo":
		return req.Score.ToxicComboLabel
	default:
		return ""
	}
}

// findingFieldValue extracts a finding-level field.
func findingFieldValue(field string, f *scan.Finding) string {
	switch field {
	case "category":
		return string(f.Category)
	case "tier":
		return string(f.Tier)
	case "risk":
		return string(f.Risk)
	case "confidence":
		return strconv.FormatFloat(f.Confidence, 'f', -1, 64)
	default:
		return ""
	}
}

// matchRule reports whether every condition of rule holds for req. When the
// rule has finding-level conditions, the IDs of the findings satisfying all
// of them are returned.
func matchRule(rule *Rule, req *EvaluateRequest) (bool, []string) {
	var findingConds []Condition
	for _, cond := range rule.Conditions {
		if findingFields[cond.Field] {
			findingConds = append(findingConds, cond)
			continue
		}
		if !evaluateCondition(cond, sourceFieldValue(cond.Field, req)) {
			return false, nil
		}
	}
	if len(findingConds) == 0 {
		return true, nil
	}

	var ids []string
	for i := range req.Findings {
		f := &req.Findings[i]
		ok := true
		for _, cond := range findingConds {
			if !evaluateCondition(cond, findingFieldValue(cond.Field, f)) {
				ok = false
				break
			}
		}
		if ok {
			ids = append(ids, f.ID)
		}
	}
	return len(ids) > 0, ids
}

// evaluateCondition checks a single condition against a field value.
func evaluateCondition(cond Condition, fieldVal string) bool {
	condValue := fmt.Sprintf("%v", cond.Value)

	switch cond.Operator {
	case "eq":
		return strings.EqualFold(fieldVal, condValue)
	case "ne":
		return !strings.EqualFold(fieldVal, condValue)
	case "in":
		return evaluateIn(fieldVal, conditionValues(cond))
	case "contains":
		return strings.Contains(strings.ToLower(fieldVal), strings.ToLower(condValue))
	case "gt", "gte", "lt", "lte":
		c, ok := compare(cond.Field, fieldVal, condValue)
		if !ok {
			return false
		}
		switch cond.Operator {
		case "gt":
			return c > 0
		case "gte":
			return c >= 0
		case "lt":
			return c < 0
		default:
			return c <= 0
		}
	default:
		return false
	}
}

// conditionValues returns the candidate list of an "in" condition. YAML
// lists arrive as []any.
func conditionValues(cond Condition) []string {
	if len(cond.Values) > 0 {
		return cond.Values
	}
	switch v := cond.Value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// evaluateIn checks if fieldVal is one of the given values (case-insensitive).
func evaluateIn(fieldVal string, values []string) bool {
	for _, v := range values {
		if strings.EqualFold(fieldVal, v) {
			return true
		}
	}
	return false
}

// compare orders two field values. Labels, risks and tiers compare by rank;
// everything else numerically.
func compare(field, fieldVal, condValue string) (int, bool) {
	var a, b float64
	switch field {
	case "ess_label":
		a = float64(score.Label(strings.ToUpper(fieldVal)).Value())
		b = float64(score.Label(strings.ToUpper(condValue)).Value())
		if b == 0 {
			return 0, false
		}
	case "risk":
		a, b = float64(riskValue(fieldVal)), float64(riskValue(condValue))
		if b == 0 {
			return 0, false
		}
	case "tier":
		a, b = float64(tierValue(fieldVal)), float64(tierValue(condValue))
	default:
		var err1, err2 error
		a, err1 = strconv.ParseFloat(fieldVal, 64)
		b, err2 = strconv.ParseFloat(condValue, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
	}

	switch {
	case a > b:
		return 1, true
	case a < b:
		return -1, true
	default:
		return 0, true
	}
}

func riskValue(s string) int {
	for _, r := range []scan.Risk{scan.RiskLow, scan.RiskMedium, scan.RiskHigh, scan.RiskCritical} {
		if strings.EqualFold(s, string(r)) {
			return r.Value()
		}
	}
	return 0
}

func tierValue(s string) int {
	switch scan.Tier(strings.ToUpper(s)) {
	case scan.TierConfirmedLeak:
		return 2
	case scan.TierProbableLeak:
		return 1
	default:
		return 0
	}
}
