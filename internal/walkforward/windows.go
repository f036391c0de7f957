package walkforward

import (
	"fmt"

	"strategy-validation-lab/internal/domain"
)

// WindowSpec sizes the rolling windows in calendar days.
type WindowSpec struct {
	TrainDays int
	TestDays  int
	// Anchored keeps every train window starting at the range start
	// (expanding window) instead of sliding it with the test window.
	Anchored bool
}

// Validate checks that both windows can hold a valid date range.
func (s WindowSpec) Validate() error {
	if s.TrainDays < 2 {
		return fmt.Errorf("%w: train window of %d days, need at least 2", domain.ErrInvalidWindow, s.TrainDays)
	}
	if s.TestDays < 2 {
		return fmt.Errorf("%w: test window of %d days, need at least 2", domain.ErrInvalidWindow, s.TestDays)
	}
	return nil
}

// Windows generates the ordered window sequence over r. The first train window
// starts at r.Start and windows advance by TestDays. Generation stops when the
// next test window would pass r.End; the uncovered tail, if any, is returned
// as discarded rather than padded.
func Windows(r domain.DateRange, spec WindowSpec) ([]domain.WalkForwardWindow, *domain.DateRange, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, nil, err
	}
	if spec.TrainDays+spec.TestDays > r.Days() {
		return nil, nil, fmt.Errorf("%w: %s has %d days, one window needs %d",
			domain.ErrInvalidWindow, r, r.Days(), spec.TrainDays+spec.TestDays)
	}

	var windows []domain.WalkForwardWindow
	testStart := domain.AddDays(r.Start, spec.TrainDays)
	for i := 0; ; i++ {
		testEnd := domain.AddDays(testStart, spec.TestDays-1)
		if testEnd.After(r.End) {
			break
		}

		trainStart := r.Start
		if !spec.Anchored {
			trainStart = domain.AddDays(r.Start, i*spec.TestDays)
		}
		windows = append(windows, domain.WalkForwardWindow{
			Index:      i,
			TrainRange: domain.DateRange{Start: trainStart, End: domain.AddDays(testStart, -1)},
			TestRange:  domain.DateRange{Start: testStart, End: testEnd},
		})
		testStart = domain.AddDays(testEnd, 1)
	}

	var discarded *domain.DateRange
	if !testStart.After(r.End) {
		discarded = &domain.DateRange{Start: testStart, End: r.End}
	}
	return windows, discarded, nil
}
