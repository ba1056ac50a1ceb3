// Package sequence issues gap-tolerant human-readable document numbers.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	NameQuote   = "quote"
	NameInvoice = "invoice"
)

// NumberSequence is the per-document-kind counter row.
type NumberSequence struct {
	Name      string    `gorm:"primaryKey;type:text"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (NumberSequence) TableName() string { return "number_sequences" }

// Next increments and returns the counter for name. Call it inside the
// transaction that inserts the numbered row so a rollback releases the lock.
func Next(ctx context.Context, tx *gorm.DB, name string, now time.Time) (int64, error) {
	db := tx.WithContext(ctx)

	res := db.Exec(
		`UPDATE number_sequences SET last_value = last_value + 1, updated_at = ? WHERE name = ?`,
		now, name,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		row := NumberSequence{Name: name, LastValue: 1, UpdatedAt: now}
		created := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if created.Error != nil {
			return 0, fmt.Errorf("create sequence %s: %w", name, created.Error)
		}
		if created.RowsAffected == 1 {
			return 1, nil
		}
		// Lost the race to create the row; advance the winner's counter instead.
		if err := db.Exec(
			`UPDATE number_sequences SET last_value = last_value + 1, updated_at = ? WHERE name = ?`,
			now, name,
		).Error; err != nil {
			return 0, fmt.Errorf("advance sequence %s: %w", name, err)
		}
	}

	var value int64
	if err := db.Raw(`SELECT last_value FROM number_sequences WHERE name = ?`, name).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return value, nil
}

const (
	DefaultQuoteTemplate   = "Q-{SEQ6}"
	DefaultInvoiceTemplate = "INV-{SEQ6}"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

var ErrTemplateWithoutSequence = errors.New("number template has no {SEQ} token")

// ValidateTemplate checks template renders and carries a sequence token, so
// two documents can never share a number.
func ValidateTemplate(template string) error {
	if !strings.Contains(template, "{SEQ}") && !seqPadRe.MatchString(template) {
		return ErrTemplateWithoutSequence
	}
	first, err := Format(template, time.Time{}, 1)
	if err != nil {
		return err
	}
	second, err := Format(template, time.Time{}, 2)
	if err != nil {
		return err
	}
	if first == second {
		return ErrTemplateWithoutSequence
	}
	return nil
}

// Format renders a document number from template. Supported tokens are
// {YYYY}, {YY}, {MM}, {DD} of issuedAt, {SEQ} and the zero padded {SEQn}.
func Format(template string, issuedAt time.Time, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid sequence value: %d", seq)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in number template: %s", out)
	}
	return out, nil
}
