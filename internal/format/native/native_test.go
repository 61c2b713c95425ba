package native

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/rtkctl/internal/fix"
)

func TestWriteHeaderFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false, 47)

	require.NoError(t, w.WriteHeader(2, "20260115"))
	assert.Equal(t, "RNGL\n20260115 2 47\n", buf.String())
}

func TestWriteFixUsesBlankFillerWithoutGeoid(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false, 1)

	alt := 5.0
	f := fix.Fix{FixType: 1, Hour: 1, Minute: 2, Second: 3, LatitudeRad: 0.1, LongitudeRad: 0.2, Altitude: &alt}
	require.NoError(t, w.WriteFix(f, 12.3))

	assert.Contains(t, buf.String(), geoidFiller)
	assert.NotContains(t, buf.String(), "1.230")
}

func TestWriteFixEmitsComputedGeoidCorrection(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, true, 1)

	alt := 5.0
	f := fix.Fix{FixType: 1, Hour: 1, Minute: 2, Second: 3, Altitude: &alt}
	require.NoError(t, w.WriteFix(f, 12.3))

	assert.Contains(t, buf.String(), "+1.23000000e+01")
}

func TestWriteFixOmitsAltitudeAndGeoidWhenNotPresent(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, true, 1)

	f := fix.Fix{FixType: 0, Hour: 1, Minute: 2, Second: 3, LatitudeRad: 0.1, LongitudeRad: 0.2}
	require.NoError(t, w.WriteFix(f, 12.3))

	line := strings.TrimSpace(buf.String())
	assert.Equal(t, 2, strings.Count(line, ","), "bare fix type 0 has only HHMMSS,lat,lng")
}

func TestWriteFixLabelsSuspectAsBadfix(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false, 1)

	f := fix.Fix{FixType: 0, Suspect: true}
	require.NoError(t, w.WriteFix(f, 0))

	assert.True(t, strings.HasPrefix(buf.String(), "BADFIX"))
}
