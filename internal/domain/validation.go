package domain

import (
	"errors"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Validation errors for questionnaire answers.
var (
	ErrAnswerCount    = errors.New("exactly 7 answers are required")
	ErrAnswerTooShort = errors.New("each answer must be at least 10 characters")
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("answer", validateAnswer)
}

// Validator returns the shared validator with the service's custom tags registered.
func Validator() *validator.Validate {
	return validate
}

// validateAnswer accepts strings with at least MinAnswerLength characters
// after trimming surrounding whitespace.
func validateAnswer(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(field.String())) >= MinAnswerLength
}

type answersInput struct {
	Answers []any `validate:"len=7,dive,answer"`
}

// ParseAnswers validates decoded JSON answers. The count is checked before
// the content of each answer, so a short list of bad answers reports
// ErrAnswerCount.
func ParseAnswers(v any) (Answers, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, ErrAnswerCount
	}

	if err := validate.Struct(answersInput{Answers: items}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "len" {
			return nil, ErrAnswerCount
		}
		return nil, ErrAnswerTooShort
	}

	out := make(Answers, len(items))
	for i, item := range items {
		out[i] = item.(string)
	}
	return out, nil
}
