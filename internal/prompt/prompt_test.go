package prompt

import (
	"strings"
	"testing"

	"github.com/ashureev/covenant/internal/domain"
)

func TestCovenantMessageLabelsAnswersInOrder(t *testing.T) {
	t.Parallel()

	answers := []string{"a1 answer", "a2 answer", "a3 answer", "a4 answer", "a5 answer", "a6 answer", "a7 answer"}
	msg := CovenantMessage(answers)

	last := -1
	for i, label := range domain.AnswerLabels {
		idx := strings.Index(msg, label)
		if idx < 0 {
			t.Fatalf("label %q missing from message", label)
		}
		if idx < last {
			t.Fatalf("label %q out of order", label)
		}
		last = idx

		if !strings.Contains(msg[idx:], answers[i]) {
			t.Errorf("answer %d should follow its label", i)
		}
	}

	if CovenantMessage(answers) != msg {
		t.Error("message should be deterministic")
	}
}

func TestLabelledAnswersBeyondKnownQuestions(t *testing.T) {
	t.Parallel()

	got := LabelledAnswers([]string{"x", "y", "z", "a", "b", "c", "d", "e"})
	if !strings.HasPrefix(got, "**Identity:** x\n\n**Catalyst:** y") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.HasSuffix(got, "**Q8:** e") {
		t.Errorf("expected Q8 fallback label, got %q", got)
	}
}

func TestCompanionSystemDefaultsName(t *testing.T) {
	t.Parallel()

	got := CompanionSystem("", "My covenant", []string{"who I am"})
	if !strings.Contains(got, "Name: Anonymous") {
		t.Error("expected default display name")
	}
	if !strings.Contains(got, "My covenant") || !strings.Contains(got, "**Identity:** who I am") {
		t.Error("expected covenant text and labelled answers")
	}
}

func TestSuggestUsesLastTwoTruncatedAnswers(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 200)
	got := Suggest("Values", "What matters most?", strings.Repeat("c", 100), []domain.PreviousAnswer{
		{Label: "Identity", Answer: "first"},
		{Label: "Catalyst", Answer: long},
		{Label: "Awareness", Answer: "third"},
	})

	if strings.Contains(got, "Identity: first") {
		t.Error("only the last two previous answers should be used")
	}
	if !strings.Contains(got, "Catalyst: "+strings.Repeat("x", 120)+"\n") {
		t.Error("previous answers should be cut to 120 characters")
	}
	if !strings.Contains(got, `Started writing: "`+strings.Repeat("c", 80)+`"`) {
		t.Error("current text should be cut to 80 characters")
	}
	if !strings.Contains(got, `Question (Values): "What matters most?"`) {
		t.Error("question missing")
	}
}

func TestSuggestOmitsEmptySections(t *testing.T) {
	t.Parallel()

	got := Suggest("Identity", "Who are you?", "", nil)
	if strings.Contains(got, "Started writing") || strings.Contains(got, "Previous:") {
		t.Errorf("empty sections should be omitted: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"hello", 0, ""},
		{"", 4, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestInsightsMentionsTotal(t *testing.T) {
	t.Parallel()

	got := Insights(12, "one\n---\ntwo")
	if !strings.Contains(got, "12 technology covenants") || !strings.Contains(got, "one\n---\ntwo") {
		t.Errorf("unexpected insights prompt: %q", got)
	}
}
