package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/rtkctl/internal/fix"
	"github.com/relabs-tech/rtkctl/internal/frame"
	"github.com/relabs-tech/rtkctl/internal/nmea"
)

// fakeTransport replays a scripted sequence of inbound chunks and records
// every outbound write. A nil chunk simulates a single read timing out.
type fakeTransport struct {
	writes [][]byte
	chunks [][]byte
	idx    int
}

func (f *fakeTransport) Open() error  { return nil }
func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	f.writes = append(f.writes, cp)
	return len(p), nil
}

func (f *fakeTransport) Read(buf []byte, _ time.Duration) (int, error) {
	if f.idx >= len(f.chunks) {
		return 0, nil
	}
	c := f.chunks[f.idx]
	f.idx++
	if c == nil {
		return 0, nil
	}
	return copy(buf, c), nil
}

func newTestClient(chunks [][]byte) (*Client, *fakeTransport) {
	ft := &fakeTransport{chunks: chunks}
	r := frame.New(ft, 0)
	return New(r, nil), ft
}

func TestStatusFallsBackToSolicitedCommand(t *testing.T) {
	sentence := []byte(nmea.Encode("LOG108,2,0,0,0,0,5,1,3,47"))
	// First wait (listening for an unsolicited sentence) times out; the
	// solicited response arrives on the next read.
	client, ft := newTestClient([][]byte{nil, sentence})

	st, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, st.FixType)
	assert.Equal(t, 5, st.SampleInterval)
	assert.True(t, st.GPSReceive)
	assert.Equal(t, 3, st.FileCount)
	assert.Equal(t, 47, st.FixCount)
	assert.False(t, st.GPSMouseMode)

	require.Len(t, ft.writes, 1)
	assert.Contains(t, string(ft.writes[0]), "PROY108")
}

func TestStatusUsesUnsolicitedSentenceAndFlagsMouseMode(t *testing.T) {
	sentence := []byte(nmea.Encode("LOG108,0,1,0,1,0,10,0,2,5"))
	client, ft := newTestClient([][]byte{sentence})

	st, err := client.Status()
	require.NoError(t, err)
	assert.True(t, st.GPSMouseMode)
	assert.Empty(t, ft.writes, "no command should be sent when the status arrives unsolicited")
}

func TestCurrentUTCFallsBackToLOG003(t *testing.T) {
	sentence := []byte(nmea.Encode("LOG003,20260115,101530"))
	client, _ := newTestClient([][]byte{nil, sentence})

	dt, err := client.CurrentUTC()
	require.NoError(t, err)
	assert.Equal(t, "20260115", dt.Date)
	assert.Equal(t, "101530", dt.Time)
}

func TestLogBoundaryParsesFourFields(t *testing.T) {
	sentence := []byte(nmea.Encode("LOG006,20260101,000000,20260115,235959"))
	client, _ := newTestClient([][]byte{sentence})

	b, err := client.LogBoundary()
	require.NoError(t, err)
	assert.Equal(t, "20260101", b.First.Date)
	assert.Equal(t, "235959", b.Last.Time)
}

func TestMemoryInfoParsesThreeFields(t *testing.T) {
	sentence := []byte(nmea.Encode("LOG100,4194304,4096,1024"))
	client, _ := newTestClient([][]byte{sentence})

	m, err := client.MemoryInfo()
	require.NoError(t, err)
	assert.Equal(t, uint32(4194304), m.TotalBytes)
	assert.Equal(t, uint32(4096), m.SectorSize)
	assert.Equal(t, uint32(1024), m.SectorCount)
}

func TestFileInfoParsesDescriptor(t *testing.T) {
	sentence := []byte(nmea.Encode("LOG101,20260115,2,108,4096"))
	client, _ := newTestClient([][]byte{sentence})

	d, err := client.FileInfo(0)
	require.NoError(t, err)
	assert.Equal(t, "20260115", d.Date)
	assert.Equal(t, 2, d.FixType)
	assert.Equal(t, 108, d.FixCount)
	assert.Equal(t, uint32(4096), d.MemPointer)
}

func TestSetModeSendsAndAcknowledges(t *testing.T) {
	ack := []byte(nmea.Encode("LOG103,1"))
	client, ft := newTestClient([][]byte{ack})

	err := client.SetMode(true, false)
	require.NoError(t, err)
	assert.Contains(t, string(ft.writes[0]), "PROY103,1,0")
}

func TestSetModeRejectsUnexpectedAck(t *testing.T) {
	ack := []byte(nmea.Encode("LOG999,9"))
	client, _ := newTestClient([][]byte{ack})

	err := client.SetMode(true, false)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, UnexpectedResponse, perr.Kind)
}

func TestFirmwareInfoParsesBanner(t *testing.T) {
	banner := []byte("$PSRFTXT,1.2.3,RGM-3800,57600,revA\r\n")
	client, _ := newTestClient([][]byte{banner})

	info, err := client.FirmwareInfo()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "RGM-3800", info.FirmwareTag)
	assert.Equal(t, "57600", info.DefaultBaud)
	assert.Equal(t, "revA", info.DriverRevision)
}

func TestFetchFixesDecodesRecordsAndAdvancesPointer(t *testing.T) {
	f0 := fix.Fix{FixType: 0, Hour: 10, Minute: 15, Second: 30, LatitudeRad: 0.5, LongitudeRad: 1.0}
	raw0, err := fix.Encode(f0, false)
	require.NoError(t, err)
	f1 := fix.Fix{FixType: 0, Hour: 10, Minute: 15, Second: 31, LatitudeRad: 0.51, LongitudeRad: 1.01}
	raw1, err := fix.Encode(f1, false)
	require.NoError(t, err)

	payload := append(append([]byte(nil), raw0...), raw1...)
	header := append([]byte("$LOG102,"), 0, 0, byte(len(payload))) // offset 10 == rbc == payload byte count
	body := append(header, payload...)
	sentence := []byte(nmea.Encode(string(body[1:]))) // re-wrap without the leading '$'

	client, ft := newTestClient([][]byte{sentence})

	fixes, next, err := client.FetchFixes(1000, 0, 2)
	require.NoError(t, err)
	require.Len(t, fixes, 2)
	assert.Equal(t, uint32(1000+2*12), next)
	assert.Contains(t, string(ft.writes[0]), "PROY102,1000,0,2")
}

func TestFetchFixesSpansMultipleReplySentences(t *testing.T) {
	// The device answers one PROY102 request for 3 fixes with two reply
	// sentences: sentence index 0 carries 2 records, index 1 carries the
	// remaining 1, per spec.md §4.D's inner loop.
	f0 := fix.Fix{FixType: 0, Hour: 1, Minute: 2, Second: 3, LatitudeRad: 0.1, LongitudeRad: 0.2}
	f1 := fix.Fix{FixType: 0, Hour: 1, Minute: 2, Second: 4, LatitudeRad: 0.11, LongitudeRad: 0.21}
	f2 := fix.Fix{FixType: 0, Hour: 1, Minute: 2, Second: 5, LatitudeRad: 0.12, LongitudeRad: 0.22}
	raw0, err := fix.Encode(f0, false)
	require.NoError(t, err)
	raw1, err := fix.Encode(f1, false)
	require.NoError(t, err)
	raw2, err := fix.Encode(f2, false)
	require.NoError(t, err)

	mkSentence := func(index byte, records ...[]byte) []byte {
		recordBytes := 0
		for _, r := range records {
			recordBytes += len(r)
		}
		head := append([]byte("$LOG102,"), index, 0, byte(recordBytes)) // offset 10 == rbc == payload byte count
		payload := append([]byte(nil), head...)
		for _, r := range records {
			payload = append(payload, r...)
		}
		return []byte(nmea.Encode(string(payload[1:])))
	}

	sentence0 := mkSentence(0, raw0, raw1)
	sentence1 := mkSentence(1, raw2)
	stream := append(append([]byte(nil), sentence0...), sentence1...)

	client, ft := newTestClient([][]byte{stream})

	fixes, next, err := client.FetchFixes(2000, 0, 3)
	require.NoError(t, err)
	require.Len(t, fixes, 3)
	assert.Equal(t, uint32(2000+3*12), next)
	assert.Contains(t, string(ft.writes[0]), "PROY102,2000,0,3")
}

func TestFetchFixesWarnsOnOutOfOrderSentenceIndex(t *testing.T) {
	f0 := fix.Fix{FixType: 0, Hour: 1, Minute: 2, Second: 3, LatitudeRad: 0.1, LongitudeRad: 0.2}
	f1 := fix.Fix{FixType: 0, Hour: 1, Minute: 2, Second: 4, LatitudeRad: 0.11, LongitudeRad: 0.21}
	raw0, err := fix.Encode(f0, false)
	require.NoError(t, err)
	raw1, err := fix.Encode(f1, false)
	require.NoError(t, err)

	mkSentence := func(index byte, records ...[]byte) []byte {
		recordBytes := 0
		for _, r := range records {
			recordBytes += len(r)
		}
		head := append([]byte("$LOG102,"), index, 0, byte(recordBytes)) // offset 10 == rbc == payload byte count
		payload := append([]byte(nil), head...)
		for _, r := range records {
			payload = append(payload, r...)
		}
		return []byte(nmea.Encode(string(payload[1:])))
	}

	// Sentence index jumps straight to 1 instead of starting at 0: a
	// warning is reported but the fetch still completes.
	sentence0 := mkSentence(1, raw0)
	sentence1 := mkSentence(2, raw1)
	stream := append(append([]byte(nil), sentence0...), sentence1...)

	var warnings []string
	ft := &fakeTransport{chunks: [][]byte{stream}}
	client := New(frame.New(ft, 0), func(msg string) { warnings = append(warnings, msg) })

	fixes, _, err := client.FetchFixes(0, 0, 2)
	require.NoError(t, err)
	require.Len(t, fixes, 2)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "expected sentence index 0, got 1")
}

func TestFetchFixesRejectsInvalidCommandSentence(t *testing.T) {
	client, _ := newTestClient([][]byte{[]byte(invalidChunkSentence + "\r\n")})

	_, _, err := client.FetchFixes(0, 0, 10)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, InvalidCommand, perr.Kind)
}

func TestRestoreGuardRestoresCapturedMode(t *testing.T) {
	ack := []byte(nmea.Encode("LOG103,1"))
	client, ft := newTestClient([][]byte{ack})

	guard := NewRestoreGuard(client, Status{GPSReceive: true, GPSMouseMode: false})
	require.NoError(t, guard.Close())
	assert.Contains(t, string(ft.writes[0]), "PROY103,1,0")
}

func TestRestoreGuardDisarmSkipsRestore(t *testing.T) {
	client, ft := newTestClient(nil)

	guard := NewRestoreGuard(client, Status{GPSReceive: true})
	guard.Disarm()
	require.NoError(t, guard.Close())
	assert.Empty(t, ft.writes)
}
