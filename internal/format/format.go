// Package format defines the dialect-neutral contract internal/driver uses
// to emit a downloaded log, and the rounding helper both dialects share.
package format

import (
	"math"

	"github.com/relabs-tech/rtkctl/internal/fix"
)

// Writer renders one logfile's worth of fixes. WriteHeader is called once
// before the first fix; WriteFix once per fix in order. Small interface,
// mirrored on the teacher's DataHandler shape in
// hardware/topgnss/top708/device.go, generalized from parsing inbound
// sentences to emitting outbound ones.
type Writer interface {
	WriteHeader(fixType int, date string) error
	WriteFix(f fix.Fix, geoidCorrection float64) error
}

// Round1p rounds x to one decimal place, half away from zero, matching the
// device firmware's own rounding so re-derived values agree with its
// reported totals.
func Round1p(x float64) float64 {
	if x < 0 {
		return -Round1p(-x)
	}
	return math.Floor(x*10+0.5) / 10
}
