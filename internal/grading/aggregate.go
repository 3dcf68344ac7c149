package grading

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
)

// matchFactor scales a point's informational marks by how strongly it
// matched. The authoritative total still comes from rule evaluation.
func matchFactor(mt MatchType) float64 {
	switch mt {
	case MatchExact:
		return 1.0
	case MatchHigh:
		return 0.85
	case MatchPartial:
		return 0.5
	default:
		return 0
	}
}

// aggregate turns matcher outcomes into a Result: evaluates the marking
// rules, clamps the total, fills informational per-point marks and composes
// the overall feedback.
func (e *Engine) aggregate(points []SentencePoint, outcomes []pointOutcome, scheme Scheme, maxScore float64) Result {
	res := Result{MaxScore: maxScore}

	matchedSet := make(map[string]bool, len(points))
	for _, o := range outcomes {
		if o.matched != nil {
			mp := *o.matched
			mp.MarksAwarded = round2(o.point.Weight * maxScore * matchFactor(mp.MatchType))
			mp.Feedback = pointFeedback(mp)
			res.MatchedPoints = append(res.MatchedPoints, mp)
			matchedSet[mp.PointNumber] = true
		} else {
			res.MissedPoints = append(res.MissedPoints, o.point.PointNumber)
		}
	}
	repairPartition(&res, points)

	total, satisfied := evaluateRules(scheme.Rules, matchedSet)
	res.SatisfiedRules = satisfied

	limit := maxScore
	if scheme.TotalMarks > 0 && scheme.TotalMarks < limit {
		limit = scheme.TotalMarks
	}
	if total > limit {
		total = limit
		res.Clamped = true
	}
	if total < 0 {
		total = 0
	}
	res.TotalScore = total
	if maxScore > 0 {
		res.Percentage = math.Round(total/maxScore*1000) / 10
	}
	res.OverallFeedback = e.composeFeedback(res, scheme)
	return res
}

// repairPartition enforces the invariant that every point appears in exactly
// one of matched or missed. A violation is an internal bug: repair, log, and
// keep grading rather than failing the submission.
func repairPartition(res *Result, points []SentencePoint) {
	seen := map[string]int{}
	for _, mp := range res.MatchedPoints {
		seen[mp.PointNumber]++
	}
	for _, pn := range res.MissedPoints {
		seen[pn]++
	}
	violated := false

	missed := res.MissedPoints[:0]
	for _, pn := range res.MissedPoints {
		if inMatched(res.MatchedPoints, pn) {
			violated = true
			continue // matched wins over missed
		}
		missed = append(missed, pn)
	}
	res.MissedPoints = missed

	for _, p := range points {
		if seen[p.PointNumber] == 0 {
			violated = true
			res.MissedPoints = append(res.MissedPoints, p.PointNumber)
		}
	}
	if violated {
		log.Printf("grading: point partition invariant violated, repaired (matched=%d missed=%d of %d)",
			len(res.MatchedPoints), len(res.MissedPoints), len(points))
	}
	sort.Strings(res.MissedPoints)
}

func inMatched(mps []MatchedPoint, pn string) bool {
	for _, mp := range mps {
		if mp.PointNumber == pn {
			return true
		}
	}
	return false
}

func pointFeedback(mp MatchedPoint) string {
	switch mp.MatchType {
	case MatchExact:
		return fmt.Sprintf("Fully covers point %s.", mp.PointNumber)
	case MatchHigh:
		return fmt.Sprintf("Covers point %s well; minor detail missing.", mp.PointNumber)
	case MatchPartial:
		return fmt.Sprintf("Partially covers point %s; key detail or terminology is missing.", mp.PointNumber)
	default:
		return ""
	}
}

// composeFeedback builds the deterministic overall feedback: strengths,
// weaknesses, then a closing line against the passing threshold.
func (e *Engine) composeFeedback(res Result, scheme Scheme) string {
	var strengths, weaknesses []string
	for _, mp := range res.MatchedPoints {
		switch mp.MatchType {
		case MatchExact, MatchHigh:
			strengths = append(strengths, mp.PointNumber)
		case MatchPartial:
			weaknesses = append(weaknesses, mp.PointNumber)
		}
	}
	weaknesses = append(weaknesses, res.MissedPoints...)

	var b strings.Builder
	if len(strengths) > 0 {
		fmt.Fprintf(&b, "Strengths: clearly addresses %s.", strings.Join(strengths, ", "))
	} else {
		b.WriteString("Strengths: none of the expected points were clearly addressed.")
	}
	if len(weaknesses) > 0 {
		fmt.Fprintf(&b, " Weaknesses: %s missing or only partially covered.", strings.Join(weaknesses, ", "))
	}
	if res.Clamped {
		b.WriteString(" Note: awarded marks were capped at the scheme total because overlapping rules awarded more than the available marks.")
	}
	if scheme.PassingThreshold > 0 {
		verdict := "falls below"
		if res.Percentage >= scheme.PassingThreshold {
			verdict = "meets"
		}
		fmt.Fprintf(&b, " Overall score %.1f%% %s the passing threshold of %.1f%%.",
			res.Percentage, verdict, scheme.PassingThreshold)
	}
	return b.String()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
