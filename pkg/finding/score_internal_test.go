package finding

import (
	"testing"
)

func TestHealthScore(t *testing.T) {
	t.Parallel()
	data := []struct {
		name   string
		counts map[Severity]int
		exp    float64
	}{
		{
			name:   "clean",
			counts: map[Severity]int{},
			exp:    100,
		},
		{
			name: "one of each",
			counts: map[Severity]int{
				SeverityCritical: 1,
				SeverityHigh:     1,
				SeverityMedium:   1,
				SeverityLow:      1,
			},
			exp: 64,
		},
		{
			name: "floored at zero",
			counts: map[Severity]int{
				SeverityCritical: 10,
			},
			exp: 0,
		},
		{
			name: "low only",
			counts: map[Severity]int{
				SeverityLow: 3,
			},
			exp: 97,
		},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			if score := HealthScore(d.counts); score != d.exp {
				t.Fatalf("wanted %v, got %v", d.exp, score)
			}
		})
	}
}

func TestHealthScore_monotonic(t *testing.T) {
	t.Parallel()
	for _, sev := range Severities() {
		counts := map[Severity]int{}
		prev := HealthScore(counts)
		for i := 1; i < 30; i++ {
			counts[sev] = i
			score := HealthScore(counts)
			if score > prev {
				t.Fatalf("score increased from %v to %v when adding a %s finding", prev, score, sev)
			}
			if score < 0 || score > 100 {
				t.Fatalf("score %v out of [0, 100]", score)
			}
			prev = score
		}
	}
}

func TestGrade(t *testing.T) {
	t.Parallel()
	data := []struct {
		score float64
		exp   string
	}{
		{score: 100, exp: "A"},
		{score: 90, exp: "A"},
		{score: 89, exp: "B"},
		{score: 80, exp: "B"},
		{score: 79, exp: "C"},
		{score: 70, exp: "C"},
		{score: 69, exp: "D"},
		{score: 60, exp: "D"},
		{score: 59, exp: "E"},
		{score: 50, exp: "E"},
		{score: 49, exp: "F"},
		{score: 0, exp: "F"},
	}
	for _, d := range data {
		if grade := Grade(d.score); grade != d.exp {
			t.Errorf("Grade(%v) = %s, wanted %s", d.score, grade, d.exp)
		}
	}
}

func TestCountSeverities(t *testing.T) {
	t.Parallel()
	findings := []Finding{
		{Tool: ToolBandit, Severity: SeverityHigh},
		{Tool: ToolSafety, Severity: SeverityHigh},
		{Tool: ToolSemgrep, Severity: SeverityLow},
	}
	counts := CountSeverities(findings)
	total := 0
	for _, sev := range Severities() {
		total += counts[sev]
	}
	if total != len(findings) {
		t.Fatalf("severity counts sum to %d, wanted %d", total, len(findings))
	}
	if counts[SeverityHigh] != 2 || counts[SeverityLow] != 1 || counts[SeverityMedium] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
