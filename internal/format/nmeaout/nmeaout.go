// Package nmeaout renders downloaded fixes as standard NMEA-0183 sentences
// plus the logger's own $PRTK header and $RTDIST distance sentence,
// generalizing the field-splitting conventions the teacher's
// pkg/gnssgo/nmea_parser.go uses for parsing into the inverse: emission.
package nmeaout

import (
	"fmt"
	"io"
	"math"

	"github.com/relabs-tech/rtkctl/internal/fix"
	"github.com/relabs-tech/rtkctl/internal/format"
	"github.com/relabs-tech/rtkctl/internal/nmea"
)

// headerTag is hard-truncated/padded to exactly 12 characters in the
// $PRTK header's third field, per the device firmware's fixed-width
// version stamp.
const headerTag = "RTKGPS-V1.00"

// knotsPerMetrePerSec is the device's own m/s-to-knots scale factor for
// the $GPRMC speed field, taken verbatim from spec.md §4.G rather than the
// textbook 1.9438444924 conversion, to match the firmware's own output.
const knotsPerMetrePerSec = 0.539956803

// Writer emits the NMEA dialect to an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// New wraps w.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

var _ format.Writer = (*Writer)(nil)

func (nw *Writer) emit(body string) error {
	_, err := io.WriteString(nw.w, nmea.Encode(body))
	return err
}

// WriteHeader emits the $PRTK banner once per logfile.
func (nw *Writer) WriteHeader(fixType int, date string) error {
	tag := headerTag
	if len(tag) > 12 {
		tag = tag[:12]
	}
	for len(tag) < 12 {
		tag += " "
	}
	return nw.emit(fmt.Sprintf("PRTK,RTKGPS,%s,%d,%s", tag, fixType, date))
}

// WriteFix emits one fix's $GPGGA/$GPRMC pair, its $GPGSV satellite
// pages when detailed quality data is present, and its $RTDIST distance
// sentence when the fix carries one. Fixes that failed their sanity check
// are preceded by a plain BADFIX marker line (no checksum — a host-side
// annotation, not a device sentence) so downstream readers can flag them
// without losing the raw fields.
func (nw *Writer) WriteFix(f fix.Fix, geoidCorrection float64) error {
	if f.Suspect {
		if _, err := fmt.Fprintf(nw.w, "BADFIX %02d:%02d:%02d\r\n", f.Hour, f.Minute, f.Second); err != nil {
			return err
		}
	}

	latDeg := f.LatitudeRad * 180 / math.Pi
	lngDeg := f.LongitudeRad * 180 / math.Pi

	if err := nw.writeGGA(f, latDeg, lngDeg, geoidCorrection); err != nil {
		return err
	}
	if err := nw.writeRMC(f, latDeg, lngDeg); err != nil {
		return err
	}
	if f.Quality != nil {
		if err := nw.writeGSV(*f.Quality); err != nil {
			return err
		}
	}
	if f.Distance != nil {
		if err := nw.emit(fmt.Sprintf("RTDIST,%d", *f.Distance)); err != nil {
			return err
		}
	}
	return nil
}

func (nw *Writer) writeGGA(f fix.Fix, latDeg, lngDeg, geoidCorrection float64) error {
	altitude := 0.0
	if f.Altitude != nil {
		altitude = *f.Altitude
	}
	quality := 1
	numSat, hdop := 0, 0.0
	if f.Quality != nil {
		numSat = int(f.Quality.SatCount)
		hdop = float64(f.Quality.HDOP) / 100
	}
	if f.Suspect {
		quality = 0
	}
	return nw.emit(fmt.Sprintf("GPGGA,%s,%s,%s,%d,%02d,%.1f,%.1f,M,%.1f,M,,",
		hhmmss(f), ddmm(latDeg, true), ddmm(lngDeg, false), quality, numSat, hdop,
		format.Round1p(altitude), format.Round1p(geoidCorrection)))
}

func (nw *Writer) writeRMC(f fix.Fix, latDeg, lngDeg float64) error {
	status := "A"
	if f.Suspect {
		status = "V"
	}
	speedKnots := 0.0
	if f.Velocity != nil {
		speedKnots = *f.Velocity * knotsPerMetrePerSec
	}
	return nw.emit(fmt.Sprintf("GPRMC,%s,%s,%s,%s,%.1f,0.0,%s,,",
		hhmmss(f), status, ddmm(latDeg, true), ddmm(lngDeg, false), format.Round1p(speedKnots), "010100"))
}

func (nw *Writer) writeGSV(q fix.Quality) error {
	const perSentence = 4
	total := int(q.SatCount)
	if total == 0 {
		return nil
	}
	pages := (total + perSentence - 1) / perSentence
	for page := 0; page < pages; page++ {
		body := fmt.Sprintf("GPGSV,%d,%d,%02d", pages, page+1, total)
		end := (page + 1) * perSentence
		if end > total {
			end = total
		}
		for i := page * perSentence; i < end && i < len(q.Satellites); i++ {
			sat := q.Satellites[i]
			body += fmt.Sprintf(",%02d,,,%02d", sat.PRN, sat.SNR)
		}
		if err := nw.emit(body); err != nil {
			return err
		}
	}
	return nil
}

// hhmmss renders the sentence time field. spec.md §4.G specifies
// "HHMMSS.000" by default, dropping to the shorter "HHMMSS.00" only "when
// no DOP info" is present; scenario 6 shows a fxtyp=1 fix (no DOP block,
// which only ever exists at fxtyp=4) still rendered with three decimals,
// so the two-decimal form is reserved for the truly bare fxtyp=0 record
// that carries no extra fields at all (DESIGN.md).
func hhmmss(f fix.Fix) string {
	if f.FixType == 0 {
		return fmt.Sprintf("%02d%02d%02d.00", f.Hour, f.Minute, f.Second)
	}
	return fmt.Sprintf("%02d%02d%02d.000", f.Hour, f.Minute, f.Second)
}

// ddmm renders a decimal-degree value in NMEA's "ddmm.mmmm"/"dddmm.mmmm"
// degrees-minutes form with its hemisphere letter.
func ddmm(deg float64, isLat bool) string {
	hemi := 'N'
	if isLat && deg < 0 {
		hemi = 'S'
	} else if !isLat && deg < 0 {
		hemi = 'W'
	} else if !isLat {
		hemi = 'E'
	}
	deg = math.Abs(deg)
	whole := math.Floor(deg)
	minutes := (deg - whole) * 60
	if isLat {
		return fmt.Sprintf("%02d%07.4f,%c", int(whole), minutes, hemi)
	}
	return fmt.Sprintf("%03d%07.4f,%c", int(whole), minutes, hemi)
}
