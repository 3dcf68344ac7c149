package grading

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const cellAnswer = "Mitochondria are the powerhouse of the cell and produce most of its energy. " +
	"They generate ATP through the process of cellular respiration, which consumes oxygen. " +
	"The number of mitochondria in a cell varies with its energy demands."

func TestDecomposeWeightsSumToOne(t *testing.T) {
	pts, err := Decompose(cellAnswer, DefaultDecomposeConfig())
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(pts) != 3 {
		t.Fatalf("got %d points, want 3", len(pts))
	}
	var sum float64
	for i, p := range pts {
		want := "P" + string(rune('1'+i))
		if p.PointNumber != want {
			t.Errorf("point %d numbered %q, want %q", i, p.PointNumber, want)
		}
		if p.Weight <= 0 || p.Weight > 1 {
			t.Errorf("point %s weight %.4f out of (0,1]", p.PointNumber, p.Weight)
		}
		sum += p.Weight
	}
	if math.Abs(sum-1) > weightTolerance {
		t.Errorf("weights sum to %.8f, want 1 within %g", sum, weightTolerance)
	}
}

func TestDecomposeLongerSentencesWeighMore(t *testing.T) {
	text := "Photosynthesis converts light energy into chemical energy stored in glucose molecules inside chloroplasts. " +
		"Plants need sunlight to survive and grow."
	pts, err := Decompose(text, DefaultDecomposeConfig())
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("got %d points, want 2", len(pts))
	}
	if pts[0].Weight <= pts[1].Weight {
		t.Errorf("weights %.4f, %.4f: the longer first sentence should weigh more", pts[0].Weight, pts[1].Weight)
	}
}

func TestDecomposeKeywordsSkipStopwords(t *testing.T) {
	pts, err := Decompose(cellAnswer, DefaultDecomposeConfig())
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	stop := defaultStopwords()
	for _, p := range pts {
		if len(p.Keywords) == 0 {
			t.Errorf("point %s has no salient keywords", p.PointNumber)
		}
		for _, kw := range p.Keywords {
			if _, bad := stop[kw]; bad {
				t.Errorf("point %s keyword %q is a stopword", p.PointNumber, kw)
			}
		}
	}
}

func TestDecomposeMergesShortFragments(t *testing.T) {
	text := "Yes. Mitochondria produce ATP through cellular respiration inside the cell."
	pts, err := Decompose(text, DefaultDecomposeConfig())
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(pts) != 1 {
		t.Fatalf("got %d points, want the short fragment merged into 1", len(pts))
	}
	if !strings.Contains(pts[0].Text, "Yes") {
		t.Errorf("merged point lost the leading fragment: %q", pts[0].Text)
	}
}

func TestDecomposeEmptyText(t *testing.T) {
	_, err := Decompose("   ", DefaultDecomposeConfig())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError for empty text", err)
	}
}

func TestValidatePoints(t *testing.T) {
	good := []SentencePoint{
		{PointNumber: "P1", Text: "a", Weight: 0.6},
		{PointNumber: "P2", Text: "b", Weight: 0.4},
	}
	if err := ValidatePoints(good); err != nil {
		t.Fatalf("valid points rejected: %v", err)
	}

	tests := []struct {
		name string
		pts  []SentencePoint
	}{
		{"empty set", nil},
		{"duplicate number", []SentencePoint{
			{PointNumber: "P1", Text: "a", Weight: 0.5},
			{PointNumber: "P1", Text: "b", Weight: 0.5},
		}},
		{"weight above one", []SentencePoint{
			{PointNumber: "P1", Text: "a", Weight: 1.5},
		}},
		{"negative weight", []SentencePoint{
			{PointNumber: "P1", Text: "a", Weight: -0.2},
			{PointNumber: "P2", Text: "b", Weight: 1.2},
		}},
		{"sum off by more than tolerance", []SentencePoint{
			{PointNumber: "P1", Text: "a", Weight: 0.5},
			{PointNumber: "P2", Text: "b", Weight: 0.4},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *ValidationError
			if err := ValidatePoints(tt.pts); !errors.As(err, &verr) {
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}
