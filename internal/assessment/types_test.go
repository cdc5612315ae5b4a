package assessment

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/tutord/internal/errs"
)

func TestParseLevel(t *testing.T) {
	for _, l := range AllLevels() {
		got, err := ParseLevel("  " + strings.ToUpper(l.String()) + " ")
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
	if _, err := ParseLevel("synthesize"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Errorf("ParseLevel(synthesize) error = %v, want invalid input", err)
	}
}

func TestLevelUp(t *testing.T) {
	if got := Apply.Up(1); got != Analyze {
		t.Errorf("Apply.Up(1) = %s", got)
	}
	if got := Evaluate.Up(3); got != Create {
		t.Errorf("Evaluate.Up(3) = %s", got)
	}
	if got := Understand.Up(-4); got != Remember {
		t.Errorf("Understand.Up(-4) = %s", got)
	}
}

func TestLevelJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Level{"l": Evaluate})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"l":"evaluate"}` {
		t.Errorf("Marshal = %s", data)
	}

	var out struct{ L Level }
	if err := json.Unmarshal([]byte(`{"L":"analyze"}`), &out); err != nil || out.L != Analyze {
		t.Errorf("Unmarshal = %v, %v", out.L, err)
	}
	if err := json.Unmarshal([]byte(`{"L":"guess"}`), &out); err == nil {
		t.Error("Unmarshal of unknown level succeeded")
	}
	if _, err := json.Marshal(Level(9)); err == nil {
		t.Error("Marshal of out-of-range level succeeded")
	}
}

func TestParseErrorType(t *testing.T) {
	tests := []struct {
		in   string
		want ErrorType
		ok   bool
	}{
		{"", ErrorNone, true},
		{"none", ErrorNone, true},
		{"Computational", ErrorComputational, true},
		{" structural", ErrorStructural, true},
		{"CONCEPTUAL", ErrorConceptual, true},
		{"careless", "", false},
	}
	for _, tt := range tests {
		got, err := ParseErrorType(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseErrorType(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTopicStateJSONRoundTrip(t *testing.T) {
	p := DefaultPolicy()
	ts := NewTopicState()
	RecordAttempt(ts, Attempt{Correct: true, BloomLevel: Apply, Timestamp: t0}, p)
	RecordMisconception(ts, "flips the inequality", t0)
	RecordBreak(ts, t0, p)

	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	var back TopicState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Level != Apply || len(back.Attempts) != 1 || !back.WarmupPending {
		t.Errorf("round trip lost data: %+v", back)
	}
	if !strings.Contains(string(data), `"post_break_warmup_pending":true`) {
		t.Errorf("JSON = %s", data)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("DefaultPolicy().Validate() = %v", err)
	}

	p := DefaultPolicy()
	p.MasteryDecay = 0
	p.MasteryFloor = 0.9
	err := p.Validate()
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("Validate() = %v, want invalid input", err)
	}
	for _, want := range []string{"mastery_decay", "mastery_floor"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}
