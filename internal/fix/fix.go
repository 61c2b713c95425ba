// Package fix decodes the five packed binary fix-record layouts the logger
// emits during bulk retrieval, normalizing endianness and flagging
// sanity-check failures.
package fix

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Satellite is one (PRN, SNR) pair from a fxtyp=4 quality block.
type Satellite struct {
	PRN byte
	SNR byte
}

// Quality holds the satellite-count/DOP/heading block present only on
// fxtyp=4 records.
type Quality struct {
	SatCount   byte // upper nibble of the on-wire byte
	HDOP       uint16
	PDOP       uint16
	VDOP       uint16
	HeadingDeg float32
	Satellites [12]Satellite
}

// Fix is one decoded, timestamped position record.
type Fix struct {
	FixType int

	Hour, Minute, Second int

	LatitudeRad  float64
	LongitudeRad float64

	Altitude   *float64 // metres above ellipsoid, fxtyp>=1
	Velocity   *float64 // m/s, fxtyp>=2
	Distance   *uint32  // cumulative metres, fxtyp>=3
	Quality    *Quality // fxtyp==4

	// Suspect is set when any field failed a sanity check. The fix is still
	// retained and emitted, flagged for downstream consumers.
	Suspect bool
}

// WireSize returns the packed on-wire size in bytes for fixType, or an
// error if fixType is outside 0..4.
func WireSize(fixType int) (int, error) {
	switch fixType {
	case 0:
		return 12, nil
	case 1:
		return 16, nil
	case 2:
		return 20, nil
	case 3:
		return 24, nil
	case 4:
		return 60, nil
	default:
		return 0, fmt.Errorf("invalid fix type %d", fixType)
	}
}

// latMax is the permissive upper bound on latitude the source accepts;
// preserved verbatim per spec Open Question (a) even though it exceeds a
// physically valid latitude.
const (
	latMin = -math.Pi
	latMax = 2 * math.Pi
	lngMin = -math.Pi
	lngMax = math.Pi
)

// Decode parses one raw record of fixType's wire size. raw must be exactly
// WireSize(fixType) bytes; bigEndian reads every multibyte field in
// big-endian instead of the wire's little-endian order. The protocol path
// always passes false: encoding/binary decodes the little-endian wire
// correctly on any host.
func Decode(raw []byte, fixType int, bigEndian bool) (Fix, error) {
	size, err := WireSize(fixType)
	if err != nil {
		return Fix{}, err
	}
	if len(raw) != size {
		return Fix{}, fmt.Errorf("fix record: want %d bytes, got %d", size, len(raw))
	}

	order := binary.ByteOrder(binary.LittleEndian)
	if bigEndian {
		order = binary.BigEndian
	}

	f := Fix{FixType: fixType}
	f.Hour = int(raw[1])
	f.Minute = int(raw[2])
	f.Second = int(raw[3])

	f.LatitudeRad = float64(math.Float32frombits(order.Uint32(raw[4:8])))
	f.LongitudeRad = float64(math.Float32frombits(order.Uint32(raw[8:12])))

	if fixType >= 1 {
		v := float64(math.Float32frombits(order.Uint32(raw[12:16])))
		f.Altitude = &v
	}
	if fixType >= 2 {
		v := float64(math.Float32frombits(order.Uint32(raw[16:20])))
		f.Velocity = &v
	}
	if fixType >= 3 {
		v := order.Uint32(raw[20:24])
		f.Distance = &v
	}
	if fixType == 4 {
		q := Quality{
			SatCount: raw[25] >> 4,
			HDOP:     order.Uint16(raw[26:28]),
			PDOP:     order.Uint16(raw[28:30]),
			VDOP:     order.Uint16(raw[30:32]),
		}
		for i := 0; i < 12; i++ {
			off := 32 + i*2
			q.Satellites[i] = Satellite{PRN: raw[off], SNR: raw[off+1]}
		}
		q.HeadingDeg = math.Float32frombits(order.Uint32(raw[56:60]))
		f.Quality = &q
	}

	f.Suspect = !f.sane()
	return f, nil
}

func (f Fix) sane() bool {
	if f.Hour > 23 || f.Minute > 59 || f.Second > 59 {
		return false
	}
	if f.LatitudeRad < latMin || f.LatitudeRad > latMax || math.IsNaN(f.LatitudeRad) || math.IsInf(f.LatitudeRad, 0) {
		return false
	}
	if f.LongitudeRad < lngMin || f.LongitudeRad > lngMax || math.IsNaN(f.LongitudeRad) || math.IsInf(f.LongitudeRad, 0) {
		return false
	}
	if f.Altitude != nil && !finite(*f.Altitude) {
		return false
	}
	if f.Velocity != nil && !finite(*f.Velocity) {
		return false
	}
	if f.Quality != nil && !finite(float64(f.Quality.HeadingDeg)) {
		return false
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Encode is the inverse of Decode, used by the round-trip property tests:
// it re-packs a Fix (ignoring Suspect, which is wire-derived) to its
// WireSize(fixType) byte form.
func Encode(f Fix, bigEndian bool) ([]byte, error) {
	size, err := WireSize(f.FixType)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, size)

	order := binary.ByteOrder(binary.LittleEndian)
	if bigEndian {
		order = binary.BigEndian
	}

	raw[1] = byte(f.Hour)
	raw[2] = byte(f.Minute)
	raw[3] = byte(f.Second)
	order.PutUint32(raw[4:8], math.Float32bits(float32(f.LatitudeRad)))
	order.PutUint32(raw[8:12], math.Float32bits(float32(f.LongitudeRad)))

	if f.FixType >= 1 && f.Altitude != nil {
		order.PutUint32(raw[12:16], math.Float32bits(float32(*f.Altitude)))
	}
	if f.FixType >= 2 && f.Velocity != nil {
		order.PutUint32(raw[16:20], math.Float32bits(float32(*f.Velocity)))
	}
	if f.FixType >= 3 && f.Distance != nil {
		order.PutUint32(raw[20:24], *f.Distance)
	}
	if f.FixType == 4 && f.Quality != nil {
		q := f.Quality
		raw[25] = q.SatCount << 4
		order.PutUint16(raw[26:28], q.HDOP)
		order.PutUint16(raw[28:30], q.PDOP)
		order.PutUint16(raw[30:32], q.VDOP)
		for i, sat := range q.Satellites {
			off := 32 + i*2
			raw[off] = sat.PRN
			raw[off+1] = sat.SNR
		}
		order.PutUint32(raw[56:60], math.Float32bits(q.HeadingDeg))
	}
	return raw, nil
}
