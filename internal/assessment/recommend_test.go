package assessment

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func record(ts *TopicState, p Policy, a Attempt, at time.Time) {
	a.Timestamp = at
	RecordAttempt(ts, a, p)
}

func TestRecommend_ProductiveFailure(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()

	want := []Action{ActionKeepGrinding, ActionKeepGrinding, ActionBriefTip}
	for i, w := range want {
		now := t0.Add(time.Duration(i) * time.Minute)
		record(ts, p, wrong(ErrorComputational), now)
		got := Recommend(ts, Context{Now: now}, p)
		if got.Action() != w {
			t.Fatalf("after error %d: Recommend = %s, want %s", i+1, got.Action(), w)
		}
	}
	if ts.ProductiveFailures != 3 {
		t.Errorf("ProductiveFailures = %d, want 3", ts.ProductiveFailures)
	}
}

func TestRecommend_ProductiveFailureWithWeakPrerequisite(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	layers := [][]Candidate{{{"division", 0}}}

	want := []Action{ActionKeepGrinding, ActionKeepGrinding, ActionBriefTip}
	for i, w := range want {
		now := t0.Add(time.Duration(i) * time.Minute)
		record(ts, p, wrong(ErrorComputational), now)
		got := Recommend(ts, Context{Now: now, Prerequisites: layers}, p)
		if got.Action() != w {
			t.Fatalf("after error %d (mastery %.2f): Recommend = %s, want %s", i+1, ts.Mastery, got.Action(), w)
		}
	}
}

func TestRecommend_GoBackAfterToleranceSpent(t *testing.T) {
	p := DefaultPolicy()
	p.ProductiveFailureThreshold = 0
	ts := NewTopicState()
	layers := [][]Candidate{{{"division", 0.2}}}

	record(ts, p, wrong(ErrorComputational), t0)
	record(ts, p, wrong(ErrorComputational), t0.Add(time.Minute))
	if ProductiveFailure(ts, p) {
		t.Fatal("ProductiveFailure = true with threshold 0")
	}
	got := Recommend(ts, Context{Now: t0.Add(time.Minute), Prerequisites: layers}, p)
	gb, ok := got.(GoBack)
	if !ok {
		t.Fatalf("Recommend = %T, want GoBack", got)
	}
	if gb.Prerequisite != "division" {
		t.Errorf("Prerequisite = %q, want division", gb.Prerequisite)
	}
}

func TestRecommend_FiveCorrectAtApply(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()

	prev := -1.0
	var rec Recommendation
	for i := 0; i < 5; i++ {
		now := t0.Add(time.Duration(i) * time.Minute)
		record(ts, p, correct(Apply), now)
		if ts.Mastery < prev {
			t.Fatalf("mastery dropped from %f to %f", prev, ts.Mastery)
		}
		prev = ts.Mastery

		rec = Recommend(ts, Context{Now: now}, p)
		kg, ok := rec.(KeepGrinding)
		if !ok {
			t.Fatalf("attempt %d: Recommend = %T, want KeepGrinding", i+1, rec)
		}
		if kg.RaiseDifficulty != (ts.Mastery >= p.AdvanceMastery) {
			t.Errorf("attempt %d: RaiseDifficulty = %v at mastery %f", i+1, kg.RaiseDifficulty, ts.Mastery)
		}
	}

	if zpd := ComputeZPD(ts.Level); zpd.Current < Apply {
		t.Errorf("zpd.Current = %s, want >= apply", zpd.Current)
	}
	kg := rec.(KeepGrinding)
	if !kg.RaiseDifficulty {
		t.Errorf("RaiseDifficulty = false at mastery %f", ts.Mastery)
	}
	if kg.StretchLevel != Analyze {
		t.Errorf("StretchLevel = %s, want analyze", kg.StretchLevel)
	}
}

func TestRecommend_WarmupFirst(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	ts.Level = Apply
	for i := 0; i < 6; i++ {
		record(ts, p, wrong(ErrorConceptual), t0)
	}
	ts.WarmupPending = true

	got := Recommend(ts, Context{Now: t0}, p)
	w, ok := got.(Warmup)
	if !ok {
		t.Fatalf("Recommend = %T, want Warmup", got)
	}
	if w.Level != Understand {
		t.Errorf("Warmup.Level = %s, want understand", w.Level)
	}
}

func TestRecommend_WarmupClearedByCorrect(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	RecordBreak(ts, t0, p)

	record(ts, p, wrong(ErrorComputational), t0.Add(time.Minute))
	if got := Recommend(ts, Context{Now: t0.Add(time.Minute)}, p); got.Action() != ActionWarmup {
		t.Fatalf("Recommend after wrong warmup answer = %s, want warmup", got.Action())
	}

	record(ts, p, correct(Remember), t0.Add(2*time.Minute))
	if got := Recommend(ts, Context{Now: t0.Add(2 * time.Minute)}, p); got.Action() != ActionKeepGrinding {
		t.Errorf("Recommend after correct warmup answer = %s, want keep_grinding", got.Action())
	}
}

func TestRecommend_BreakBeforeErrorRouting(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	for i := 0; i < 5; i++ {
		record(ts, p, wrong(ErrorStructural), t0.Add(time.Duration(i)*time.Minute))
	}

	got := Recommend(ts, Context{Now: t0.Add(5 * time.Minute)}, p)
	tb, ok := got.(TakeBreak)
	if !ok {
		t.Fatalf("Recommend = %T, want TakeBreak", got)
	}
	if tb.Urgency != UrgencyMedium || tb.MinMinutes != 5 || tb.MaxMinutes != 10 {
		t.Errorf("TakeBreak = %+v, want medium 5-10", tb)
	}
}

func TestRecommend_DecliningBreak(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	seq := []Attempt{correct(Remember), correct(Remember), wrong(ErrorConceptual), wrong(ErrorConceptual), wrong(ErrorConceptual)}
	for i, a := range seq {
		record(ts, p, a, t0.Add(time.Duration(i)*time.Minute))
	}
	if ts.Trajectory != TrajectoryDeclining {
		t.Fatalf("Trajectory = %s, want declining", ts.Trajectory)
	}

	got := Recommend(ts, Context{Now: t0.Add(5 * time.Minute)}, p)
	if tb, ok := got.(TakeBreak); !ok || tb.Urgency != UrgencyHigh {
		t.Errorf("Recommend = %#v, want high urgency TakeBreak", got)
	}
}

func TestRecommend_NoBreakInsideCooldown(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	RecordBreak(ts, t0, p)
	ts.WarmupPending = false
	for i := 0; i < 6; i++ {
		record(ts, p, wrong(ErrorStructural), t0.Add(time.Duration(i)*time.Second))
	}

	got := Recommend(ts, Context{Now: t0.Add(5 * time.Minute)}, p)
	if got.Action() == ActionTakeBreak {
		t.Errorf("Recommend = take_break inside cooldown")
	}
}

func TestRecommend_TargetedInstruction(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	if _, err := RecordMisconception(ts, "adds denominators", t0); err != nil {
		t.Fatal(err)
	}
	record(ts, p, correct(Remember), t0)
	record(ts, p, wrong(ErrorConceptual), t0.Add(time.Minute))

	got := Recommend(ts, Context{Now: t0.Add(time.Minute)}, p)
	ti, ok := got.(TargetedInstruction)
	if !ok {
		t.Fatalf("Recommend = %T, want TargetedInstruction", got)
	}
	if ti.ErrorType != ErrorConceptual {
		t.Errorf("ErrorType = %s, want conceptual", ti.ErrorType)
	}
	if len(ti.Misconceptions) != 1 || ti.Misconceptions[0] != "adds denominators" {
		t.Errorf("Misconceptions = %v", ti.Misconceptions)
	}
}

func TestRecommend_GoBack(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	record(ts, p, wrong(ErrorConceptual), t0)
	record(ts, p, wrong(ErrorConceptual), t0.Add(time.Minute))

	tests := []struct {
		name   string
		layers [][]Candidate
		want   string
	}{
		{
			name: "lowest in nearest layer, first listed on tie",
			layers: [][]Candidate{
				{{"fractions", 0.9}, {"division", 0.4}, {"multiplication", 0.4}},
				{{"counting", 0.1}},
			},
			want: "division",
		},
		{
			name: "nearest layer fully resolved",
			layers: [][]Candidate{
				{{"fractions", 0.95}},
				{{"counting", 0.6}, {"number_line", 0.1}},
			},
			want: "number_line",
		},
		{
			name:   "no unresolved prerequisite",
			layers: [][]Candidate{{{"fractions", 0.9}}},
		},
		{name: "no graph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(ts, Context{Now: t0.Add(2 * time.Minute), Prerequisites: tt.layers}, p)
			if tt.want == "" {
				if got.Action() != ActionTargetedInstruction {
					t.Errorf("Recommend = %s, want targeted_instruction", got.Action())
				}
				return
			}
			gb, ok := got.(GoBack)
			if !ok {
				t.Fatalf("Recommend = %T, want GoBack", got)
			}
			if gb.Prerequisite != tt.want {
				t.Errorf("Prerequisite = %q, want %q", gb.Prerequisite, tt.want)
			}
		})
	}
}

func TestRecommend_GoBackNeedsPersistentErrors(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	record(ts, p, wrong(ErrorConceptual), t0)

	layers := [][]Candidate{{{"fractions", 0.1}}}
	got := Recommend(ts, Context{Now: t0, Prerequisites: layers}, p)
	if got.Action() == ActionGoBack {
		t.Error("Recommend = go_back after a single error")
	}
}

func TestRecommend_DoesNotMutate(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	record(ts, p, wrong(ErrorComputational), t0)
	before, _ := json.Marshal(ts)

	Recommend(ts, Context{Now: t0.Add(time.Hour)}, p)

	after, _ := json.Marshal(ts)
	if string(before) != string(after) {
		t.Errorf("Recommend mutated state:\nbefore %s\nafter  %s", before, after)
	}
}

func TestWrap_JSON(t *testing.T) {
	data, err := json.Marshal(Wrap(BriefTip{Streak: 3}))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"action":"brief_tip"`, `"streak":3`, `"detail":"3 computational slips`} {
		if !strings.Contains(s, want) {
			t.Errorf("Wrap JSON = %s, missing %s", s, want)
		}
	}
}

func TestRecommendationVariants(t *testing.T) {
	all := []Recommendation{KeepGrinding{}, BriefTip{}, TargetedInstruction{}, GoBack{}, TakeBreak{}, Warmup{}}
	seen := map[Action]bool{}
	for _, r := range all {
		if seen[r.Action()] {
			t.Errorf("duplicate action %s", r.Action())
		}
		seen[r.Action()] = true
		if r.Detail() == "" {
			t.Errorf("%s has empty detail", r.Action())
		}
	}
}
