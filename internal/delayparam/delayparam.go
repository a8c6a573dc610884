// Package delayparam parses the delay query parameter shared by the delay
// and front services.
package delayparam

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/fanout-lab/fanout/internal/errors"
)

// Default is the delay applied when the parameter is absent or empty.
const Default = time.Second

// maxSeconds is the largest delay representable as a time.Duration.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// Parse converts the raw delay query parameter to a duration. An absent or
// empty value defaults to one second. Fractional seconds are accepted;
// malformed, negative, or over-cap values are validation errors.
func Parse(raw string, max time.Duration) (time.Duration, error) {
	if raw == "" {
		return Default, nil
	}

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.WithDetails(
			errors.NewValidationError("delay must be a number"),
			map[string]interface{}{"delay": raw},
		)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, errors.NewValidationError("delay must be a finite number")
	}
	if secs < 0 {
		return 0, errors.NewValidationError("delay cannot be negative")
	}

	// Range checks happen on the float, before the duration conversion: a
	// large enough value would overflow time.Duration and wrap negative.
	if max > 0 && secs > max.Seconds() {
		return 0, errors.WithDetails(
			errors.NewValidationError(fmt.Sprintf("delay exceeds the maximum of %s", max)),
			map[string]interface{}{"delay": raw, "max_delay": max.String()},
		)
	}
	if secs > maxSeconds {
		return 0, errors.WithDetails(
			errors.NewValidationError("delay is too large"),
			map[string]interface{}{"delay": raw},
		)
	}

	return time.Duration(secs * float64(time.Second)), nil
}

// Format renders a duration the way the delay service expects its query
// parameter, in seconds without a trailing unit.
func Format(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
