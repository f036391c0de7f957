// Package split partitions a date range into adjacent train and test ranges.
package split

import (
	"fmt"
	"math"

	"strategy-validation-lab/internal/domain"
)

// MinDays is the shortest range that can be split: each side needs start < end.
const MinDays = 4

// Split partitions r at start + fraction*(end-start), rounded to the nearest day.
// train covers [r.Start, split-1], test covers [split, r.End]. The split day is
// clamped so each side keeps at least two days.
func Split(r domain.DateRange, trainFraction float64) (train, test domain.DateRange, err error) {
	if !(trainFraction > 0 && trainFraction < 1) {
		return train, test, fmt.Errorf("%w: got %v", domain.ErrInvalidTrainFraction, trainFraction)
	}
	if err := r.Validate(); err != nil {
		return train, test, err
	}
	days := r.Days()
	if days < MinDays {
		return train, test, fmt.Errorf("%w: %s has %d days, need at least %d to split",
			domain.ErrInvalidRange, r, days, MinDays)
	}

	span := days - 1
	offset := int(math.Round(trainFraction * float64(span)))
	offset = max(offset, 2)
	offset = min(offset, span-1)

	splitDay := domain.AddDays(r.Start, offset)
	train = domain.DateRange{Start: r.Start, End: domain.AddDays(splitDay, -1)}
	test = domain.DateRange{Start: splitDay, End: r.End}
	return train, test, nil
}
