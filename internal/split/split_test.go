package split

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/domain"
)

func mustRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

func TestSplit_Basic(t *testing.T) {
	r := mustRange(t, "2024-01-01", "2024-01-11") // span 10 days

	train, test, err := Split(r, 0.7)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01..2024-01-07", train.String())
	assert.Equal(t, "2024-01-08..2024-01-11", test.String())
}

func TestSplit_RoundTrip(t *testing.T) {
	starts := []string{"2020-02-27", "2023-12-30", "2024-03-09"}
	lengths := []int{4, 5, 17, 100, 365, 1000}
	fractions := []float64{1e-9, 0.01, 0.1, 0.25, 0.333, 0.5, 0.7, 0.9, 0.999999}

	for _, s := range starts {
		start, err := time.Parse(domain.DateLayout, s)
		require.NoError(t, err)
		for _, n := range lengths {
			r, err := domain.NewDateRange(start, domain.AddDays(start, n-1))
			require.NoError(t, err)
			for _, f := range fractions {
				train, test, err := Split(r, f)
				require.NoError(t, err, "range %s fraction %v", r, f)

				require.NoError(t, train.Validate())
				require.NoError(t, test.Validate())
				assert.Equal(t, r.Start, train.Start)
				assert.Equal(t, r.End, test.End)
				assert.Equal(t, domain.AddDays(train.End, 1), test.Start, "no gap or overlap")
				assert.Equal(t, r.Days(), train.Days()+test.Days())
			}
		}
	}
}

func TestSplit_InvalidFraction(t *testing.T) {
	r := mustRange(t, "2024-01-01", "2024-12-31")
	for _, f := range []float64{0, 1, -0.1, 1.5, math.NaN(), math.Inf(1)} {
		_, _, err := Split(r, f)
		assert.ErrorIs(t, err, domain.ErrInvalidTrainFraction, "fraction %v", f)
		assert.True(t, domain.IsUsage(err))
	}
}

func TestSplit_RangeTooShort(t *testing.T) {
	r := mustRange(t, "2024-01-01", "2024-01-03")
	_, _, err := Split(r, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestSplit_InvalidRange(t *testing.T) {
	_, _, err := Split(domain.DateRange{}, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}
