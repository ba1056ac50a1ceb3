package sequence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNextIncrementsPerName(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&NumberSequence{}))

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for want := int64(1); want <= 3; want++ {
		got, err := Next(ctx, db, NameQuote, now)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := Next(ctx, db, NameInvoice, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestFormat(t *testing.T) {
	issued := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	got, err := Format(DefaultQuoteTemplate, issued, 42)
	require.NoError(t, err)
	assert.Equal(t, "Q-000042", got)

	got, err = Format(DefaultInvoiceTemplate, issued, 1234567)
	require.NoError(t, err)
	assert.Equal(t, "INV-1234567", got)

	got, err = Format("INV-{YYYY}{MM}{DD}-{SEQ4}", issued, 7)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260309-0007", got)
}

func TestFormatRejectsBadInput(t *testing.T) {
	_, err := Format("", time.Time{}, 1)
	assert.Error(t, err)

	_, err = Format(DefaultQuoteTemplate, time.Time{}, 0)
	assert.Error(t, err)

	_, err = Format("Q-{NOPE}", time.Time{}, 1)
	assert.Error(t, err)
}

func TestValidateTemplate(t *testing.T) {
	assert.NoError(t, ValidateTemplate(DefaultQuoteTemplate))
	assert.NoError(t, ValidateTemplate("INV-{YYYY}-{SEQ}"))

	assert.ErrorIs(t, ValidateTemplate("Q-{YYYY}"), ErrTemplateWithoutSequence)
	assert.ErrorIs(t, ValidateTemplate("Q-0001"), ErrTemplateWithoutSequence)
	assert.Error(t, ValidateTemplate("Q-{SEQ0}"))
	assert.Error(t, ValidateTemplate("Q-{SEQ6"))
}
