package localday_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitDietAPI/internal/apperr"
	"fitDietAPI/internal/localday"
)

func TestOfUsesLocalCalendar(t *testing.T) {
	loc, err := localday.Location("America/Los_Angeles")
	require.NoError(t, err)

	// 2025-01-02 05:30 UTC is still the evening of Jan 1 in Los Angeles.
	instant := time.Date(2025, 1, 2, 5, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-01-01", localday.Format(localday.Of(instant, loc)))
	assert.Equal(t, "2025-01-02", localday.Format(localday.Of(instant, time.UTC)))
}

func TestLocationDefaultsToUTC(t *testing.T) {
	loc, err := localday.Location("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	_, err := localday.Location("Mars/Olympus_Mons")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBetweenAcrossMonthEnd(t *testing.T) {
	a, _ := localday.Parse("2025-01-30")
	b, _ := localday.Parse("2025-02-02")

	assert.Equal(t, 3, localday.Between(a, b))
	assert.Equal(t, -3, localday.Between(b, a))
	assert.Equal(t, 0, localday.Between(a, a.Add(23*time.Hour)))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := localday.Parse("01/02/2025")
	assert.ErrorIs(t, err, localday.ErrInvalidDate)
}
