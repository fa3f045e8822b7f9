// Package domain defines the core types shared across the service.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	// AnswerCount is the number of questionnaire answers a covenant requires.
	AnswerCount = 7
	// MinAnswerLength is the minimum trimmed length of every answer, in characters.
	MinAnswerLength = 10
	// DefaultDisplayName is stored when the author gives no name.
	DefaultDisplayName = "Anonymous"
)

// AnswerLabels names the questionnaire answers in order.
var AnswerLabels = [AnswerCount]string{
	"Identity",
	"Catalyst",
	"Awareness",
	"Values",
	"Boundaries",
	"Agency",
	"Legacy",
}

// AnswerLabel returns the label for the answer at index i, or Q<i+1> past the
// known questions.
func AnswerLabel(i int) string {
	if i >= 0 && i < len(AnswerLabels) {
		return AnswerLabels[i]
	}
	return "Q" + strconv.Itoa(i+1)
}

// Covenant is a generated pledge persisted in the community gallery.
// Answers and CovenantText never change after creation; Upvotes only grows.
type Covenant struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	DisplayName  string    `json:"display_name" gorm:"not null;default:Anonymous"`
	Answers      Answers   `json:"answers" gorm:"type:jsonb;not null"`
	CovenantText string    `json:"covenant_text" gorm:"not null"`
	Upvotes      int       `json:"upvotes" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;index:idx_covenants_created_at,sort:desc"`
}

// TableName pins the GORM table name.
func (Covenant) TableName() string { return "covenants" }

// NameOrDefault returns name, or DefaultDisplayName when it is blank.
func NameOrDefault(name string) string {
	if name == "" {
		return DefaultDisplayName
	}
	return name
}

// Answers is the ordered list of questionnaire answers, stored as a JSON array.
type Answers []string

// Value implements driver.Valuer.
func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *Answers) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan answers: unsupported type %T", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan answers: %w", err)
	}
	*a = out
	return nil
}
