// Package native renders downloaded fixes in the logger's own compact
// "RNGL" text dialect: one header line and one scientific-notation line
// per fix, avoiding the NMEA sentence overhead entirely.
package native

import (
	"fmt"
	"io"
	"math"

	"github.com/relabs-tech/rtkctl/internal/fix"
	"github.com/relabs-tech/rtkctl/internal/format"
)

// geoidFiller is written in place of a real geoid correction when none was
// computed (no grid supplied), matching the source tool's column-aligned
// blank field.
const geoidFiller = "          " // ten spaces

// Writer emits the RNGL dialect to an underlying io.Writer.
type Writer struct {
	w        io.Writer
	hasGeoid bool
	nfix     int
}

// New wraps w. hasGeoid controls whether WriteFix emits a computed geoid
// correction or the fixed-width blank filler; nfix is the fix count
// reported on the per-logfile header line.
func New(w io.Writer, hasGeoid bool, nfix int) *Writer {
	return &Writer{w: w, hasGeoid: hasGeoid, nfix: nfix}
}

var _ format.Writer = (*Writer)(nil)

// WriteHeader emits the literal "RNGL" banner followed by the per-logfile
// "<date> <fxtyp> <nfix>" line.
func (nw *Writer) WriteHeader(fixType int, date string) error {
	_, err := fmt.Fprintf(nw.w, "RNGL\n%s %d %d\n", date, fixType, nw.nfix)
	return err
}

// WriteFix emits one fix's comma-separated line:
// "HHMMSS,<±lat>,<±lng>[,<±alt>][,<±geoid>|filler][,<±vel>]", each float in
// the precision spec.md §4.G assigns by field kind (position at %+.12e,
// altitude/geoid at %+.8e, velocity at %+.3e). Suspect fixes get a leading
// "BADFIX HHMMSS" marker line, like the NMEA dialect's "BADFIX HH:MM:SS"
// line (spec invariant iv: still emitted, flagged distinctly) since the
// data line's own format has no field reserved for the flag.
func (nw *Writer) WriteFix(f fix.Fix, geoidCorrection float64) error {
	if f.Suspect {
		if _, err := fmt.Fprintf(nw.w, "BADFIX %02d%02d%02d\n", f.Hour, f.Minute, f.Second); err != nil {
			return err
		}
	}

	line := fmt.Sprintf("%02d%02d%02d,%+.12e,%+.12e", f.Hour, f.Minute, f.Second, f.LatitudeRad, f.LongitudeRad)

	if f.Altitude != nil {
		line += fmt.Sprintf(",%+.8e", *f.Altitude)

		geoidField := geoidFiller
		if nw.hasGeoid && !math.IsNaN(geoidCorrection) {
			geoidField = fmt.Sprintf("%+.8e", geoidCorrection)
		}
		line += "," + geoidField
	}

	if f.Velocity != nil {
		line += fmt.Sprintf(",%+.3e", *f.Velocity)
	}

	_, err := fmt.Fprintf(nw.w, "%s\n", line)
	return err
}
