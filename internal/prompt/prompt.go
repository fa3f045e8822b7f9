// Package prompt builds the model instructions for each endpoint. Output is
// deterministic for a given input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ashureev/covenant/internal/domain"
)

// Sampling limits applied when building prompts.
const (
	SuggestPreviousAnswers = 2
	SuggestPreviousChars   = 120
	SuggestCurrentChars    = 80
	SuggestionCount        = 3
)

// CovenantSystem instructs the model how to write a covenant.
const CovenantSystem = `You write personalized humanistic technology covenants. Read one person's reflections on their relationship with technology and turn them into a personal pledge that captures their values, boundaries and hopes.

The covenant must:
- Be written in the first person ("I commit to...", "I will...", "I choose to...").
- Open with a short preamble of two or three sentences about this person's situation.
- List five to seven specific, actionable commitments taken from their answers.
- Close with an aspirational paragraph about the future they want to help build.
- Use warm, dignified language. Avoid corporate or casual tone.
- Run roughly 250 to 350 words.

Layout:
My Covenant with Technology (or a personalized variation)

Preamble paragraph

Numbered commitments

Closing paragraph

Every commitment must trace back to something the person actually wrote. Skip generic platitudes.`

var covenantSections = [domain.AnswerCount]string{
	"Who I Am (Identity)",
	"What Sparked My Reflection (Catalyst)",
	"On Awareness",
	"On Values",
	"On Boundaries",
	"On Agency",
	"On Legacy",
}

// CovenantMessage renders the seven answers as the user turn of a generation request.
func CovenantMessage(answers []string) string {
	var b strings.Builder
	b.WriteString("Here are my reflections on my relationship with technology:\n")
	for i, a := range answers {
		heading := domain.AnswerLabel(i)
		if i < len(covenantSections) {
			heading = covenantSections[i]
		}
		fmt.Fprintf(&b, "\n**%s:**\n%s\n", heading, a)
	}
	b.WriteString("\nPlease write my personal technology covenant from these reflections.")
	return b.String()
}

// LabelledAnswers renders answers as "**Label:** answer" blocks separated by blank lines.
func LabelledAnswers(answers []string) string {
	blocks := make([]string, len(answers))
	for i, a := range answers {
		blocks[i] = fmt.Sprintf("**%s:** %s", domain.AnswerLabel(i), a)
	}
	return strings.Join(blocks, "\n\n")
}

// CompanionSystem grounds the companion chat in the user's own covenant.
func CompanionSystem(displayName, covenantText string, answers []string) string {
	return fmt.Sprintf(`You are a warm, practical companion helping someone live by their personal technology covenant. Coach, do not lecture.

About this person:
- Name: %s
- Their technology covenant:
%s

- Their original reflections:
%s

Guidelines:
- Give specific advice tied to their covenant and reflections.
- Stay conversational and encouraging.
- Keep answers to two to four short paragraphs.
- Suggest small experiments they can try this week.
- Refer to their own commitments when it helps.
- When they describe a struggle, acknowledge it before offering strategies.
- Ask a clarifying question when you need more context.`,
		domain.NameOrDefault(displayName), covenantText, LabelledAnswers(answers))
}

// Insights asks for a short community narrative over a sample of covenants.
func Insights(total int, sample string) string {
	return fmt.Sprintf(`Below are excerpts from %d technology covenants written by a community of people reflecting on their relationship with technology:

%s

Write a brief community insight of three or four sentences that:
- names two or three shared themes or concerns,
- says what this community values most,
- is written in the third person ("This community..."),
- sounds warm rather than clinical,
- uses flowing prose with no bullet points or headings.`, total, sample)
}

// Suggest builds the prompt for answer-starter suggestions.
func Suggest(questionLabel, questionText, currentText string, previous []domain.PreviousAnswer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d short first-person phrases (15 to 25 words each) that could start an answer to this reflection question.\n\n", SuggestionCount)
	fmt.Fprintf(&b, "Question (%s): %q\n", questionLabel, questionText)

	if current := Truncate(currentText, SuggestCurrentChars); current != "" {
		fmt.Fprintf(&b, "Started writing: %q\n", current)
	}

	if len(previous) > SuggestPreviousAnswers {
		previous = previous[len(previous)-SuggestPreviousAnswers:]
	}
	if len(previous) > 0 {
		b.WriteString("Previous:\n")
		for _, p := range previous {
			fmt.Fprintf(&b, "%s: %s\n", p.Label, Truncate(p.Answer, SuggestPreviousChars))
		}
	}

	b.WriteString("\nEach phrase should sound personal and specific, as if the user were speaking.")
	return b.String()
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
