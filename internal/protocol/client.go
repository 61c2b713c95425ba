// Package protocol implements the RoyalTek RGM/RTK logger's command/response
// catalogue: checksummed ASCII commands and text responses, plus the
// length-prefixed binary bulk fix retrieval.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/rtkctl/internal/frame"
	"github.com/relabs-tech/rtkctl/internal/nmea"
)

// Client issues commands to and decodes responses from a logger over a
// frame.Reader. One Client drives exactly one verb invocation.
type Client struct {
	r *frame.Reader

	// warn receives non-fatal diagnostics (unexpected sentence index,
	// suspect fields) for the deduplicating sink the driver owns.
	warn func(string)
}

// New wraps r. warn may be nil, in which case warnings are discarded.
func New(r *frame.Reader, warn func(string)) *Client {
	if warn == nil {
		warn = func(string) {}
	}
	return &Client{r: r, warn: warn}
}

// send writes a checksummed command sentence for body.
func (c *Client) send(body string) error {
	_, err := c.r.Write([]byte(nmea.Encode(body)))
	return wrap(SystemIO, err)
}

// wait reads up to and including the next sentence beginning with prefix
// (e.g. "$LOG108,") and terminated by "\r\n", verifies its checksum, and
// returns the portion of the body after prefix's own comma-terminated tag.
func (c *Client) wait(prefix string, timeout time.Duration) (string, error) {
	n, err := c.r.ReadDelimited([]byte(prefix), []byte("\r\n"), timeout)
	if err != nil {
		return "", wrap(SystemIO, err)
	}
	if n == 0 {
		return "", &Error{Kind: NoResponse}
	}

	raw := append([]byte(nil), c.r.Bytes()[:n]...)
	c.r.Discard(n)

	body, err := nmea.Verify(raw)
	if err != nil {
		return "", wrap(ChecksumMismatch, err)
	}

	tag := prefix[1:] // drop leading '$'
	rest := strings.TrimPrefix(string(body), tag)
	return rest, nil
}

// command sends body and waits for a response with the given prefix.
func (c *Client) command(body, prefix string, timeout time.Duration) (string, error) {
	if err := c.send(body); err != nil {
		return "", err
	}
	return c.wait(prefix, timeout)
}

// Status solicits or listens for the device's status sentence, per the
// dual-mode acquisition rule: listen first for an unsolicited $LOG108
// within 1500ms; only if none arrives, solicit with PROY108.
func (c *Client) Status() (Status, error) {
	fields, err := c.wait("$LOG108,", timeoutListen)
	gpsmsDetectedLive := err == nil

	if err != nil {
		var perr *Error
		if !asProtocolError(err, &perr) || perr.Kind != NoResponse {
			return Status{}, err
		}
		fields, err = c.command("PROY108", "$LOG108,", timeoutListen)
		if err != nil {
			return Status{}, err
		}
	}

	st, perr := parseStatus(fields)
	if perr != nil {
		return Status{}, perr
	}
	if gpsmsDetectedLive {
		st.GPSMouseMode = true
	}
	return st, nil
}

func parseStatus(fields string) (Status, error) {
	parts := strings.Split(fields, ",")
	if len(parts) < 9 {
		return Status{}, newErr(ParseError, "status: expected 9 fields, got %d", len(parts))
	}
	// fxtyp, mfowm, sntvl, gpsrx, nfile, nfix are interpreted numeric
	// fields; u0, u1, u2 are opaque and kept as raw strings (field indices
	// 1, 2, 4 in the "fxtyp,u0,u1,mfowm,u2,sntvl,gpsrx,nfile,nfix" layout).
	numericIdx := [...]int{0, 3, 5, 6, 7, 8}
	ints := make(map[int]int, len(numericIdx))
	for _, i := range numericIdx {
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return Status{}, newErr(ParseError, "status field %d %q: %v", i, parts[i], err)
		}
		ints[i] = v
	}
	return Status{
		FixType:        ints[0],
		MemFullMode:    MemFullMode(ints[3]),
		SampleInterval: ints[5],
		GPSReceive:     ints[6] != 0,
		FileCount:      ints[7],
		FixCount:       ints[8],
		ReservedU0:     parts[1],
		ReservedU1:     parts[2],
		ReservedU2:     parts[4],
	}, nil
}

// CurrentUTC prefers an unsolicited $GPRMC stream sentence (reading time
// from field 1 and date from field 9), falling back to PROY003/$LOG003.
func (c *Client) CurrentUTC() (DateTime, error) {
	fields, err := c.wait("$GPRMC,", timeoutGeneric)
	if err == nil {
		parts := strings.Split(fields, ",")
		if len(parts) >= 9 {
			return DateTime{Date: parts[8], Time: parts[0]}, nil
		}
		c.warn("malformed $GPRMC sentence, falling back to PROY003")
	}

	fields, err = c.command("PROY003", "$LOG003,", timeoutGeneric)
	if err != nil {
		return DateTime{}, err
	}
	parts := strings.Split(fields, ",")
	if len(parts) < 2 {
		return DateTime{}, newErr(ParseError, "LOG003: expected 2 fields, got %d", len(parts))
	}
	return DateTime{Date: parts[0], Time: parts[1]}, nil
}

// LogBoundary requests the first/last (date, time) pair across all stored
// files.
func (c *Client) LogBoundary() (LogBoundary, error) {
	fields, err := c.command("PROY006", "$LOG006,", timeoutStatusBound)
	if err != nil {
		return LogBoundary{}, err
	}
	parts := strings.Split(fields, ",")
	if len(parts) < 4 {
		return LogBoundary{}, newErr(ParseError, "LOG006: expected 4 fields, got %d", len(parts))
	}
	return LogBoundary{
		First: DateTime{Date: parts[0], Time: parts[1]},
		Last:  DateTime{Date: parts[2], Time: parts[3]},
	}, nil
}

// MemoryInfo requests the device's log memory geometry.
func (c *Client) MemoryInfo() (MemoryInfo, error) {
	fields, err := c.command("PROY100", "$LOG100,", timeoutGeneric)
	if err != nil {
		return MemoryInfo{}, err
	}
	parts := strings.Split(fields, ",")
	if len(parts) < 3 {
		return MemoryInfo{}, newErr(ParseError, "LOG100: expected 3 fields, got %d", len(parts))
	}
	nbytes, err1 := strconv.ParseUint(parts[0], 10, 32)
	sectorSize, err2 := strconv.ParseUint(parts[1], 10, 32)
	numSectors, err3 := strconv.ParseUint(parts[2], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return MemoryInfo{}, newErr(ParseError, "LOG100: malformed numeric field")
	}
	return MemoryInfo{
		TotalBytes:  uint32(nbytes),
		SectorSize:  uint32(sectorSize),
		SectorCount: uint32(numSectors),
	}, nil
}

// FileInfo requests the n'th log-file descriptor. A single-field "0"
// response means the device has no file at that index, returned as
// InvalidCommand so a directory-walking caller can stop cleanly.
func (c *Client) FileInfo(n int) (LogDescriptor, error) {
	fields, err := c.command(fmt.Sprintf("PROY101,%d", n), "$LOG101,", timeoutGeneric)
	if err != nil {
		return LogDescriptor{}, err
	}
	if fields == "0" {
		return LogDescriptor{}, &Error{Kind: InvalidCommand}
	}
	parts := strings.Split(fields, ",")
	if len(parts) < 4 {
		return LogDescriptor{}, newErr(ParseError, "LOG101: expected 4 fields, got %d", len(parts))
	}
	fixType, err1 := strconv.Atoi(parts[1])
	fixCount, err2 := strconv.Atoi(parts[2])
	memPointer, err3 := strconv.ParseUint(parts[3], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return LogDescriptor{}, newErr(ParseError, "LOG101: malformed numeric field")
	}
	return LogDescriptor{
		Date:       parts[0],
		FixType:    fixType,
		FixCount:   fixCount,
		MemPointer: uint32(memPointer),
	}, nil
}

// FirmwareInfo requests the device's $PSRFTXT banner and scrapes its four
// free-form fields. Unlike the other responses, $PSRFTXT carries no
// checksum; the device emits it as a plain diagnostic line.
func (c *Client) FirmwareInfo() (FirmwareInfo, error) {
	if err := c.send("PROY005"); err != nil {
		return FirmwareInfo{}, err
	}
	n, err := c.r.ReadDelimited([]byte("$PSRFTXT,"), []byte("\r\n"), timeoutGeneric)
	if err != nil {
		return FirmwareInfo{}, wrap(SystemIO, err)
	}
	if n == 0 {
		return FirmwareInfo{}, &Error{Kind: NoResponse}
	}
	raw := append([]byte(nil), c.r.Bytes()[:n]...)
	c.r.Discard(n)
	return parseFirmwareInfo(raw)
}

// parseFirmwareInfo scans a raw "$PSRFTXT,version,tag,baud,revision\r\n"
// line into its four fields.
func parseFirmwareInfo(raw []byte) (FirmwareInfo, error) {
	s := strings.TrimRight(string(raw), "\r\n")
	s = strings.TrimPrefix(s, "$PSRFTXT,")
	parts := strings.SplitN(s, ",", 4)
	if len(parts) < 4 {
		return FirmwareInfo{}, newErr(ParseError, "PSRFTXT: expected 4 fields, got %d", len(parts))
	}
	return FirmwareInfo{
		Version:        parts[0],
		FirmwareTag:    parts[1],
		DefaultBaud:    parts[2],
		DriverRevision: parts[3],
	}, nil
}

// SetMode sends PROY103 to change the logging / GPS-mouse-mode outputs and
// waits for its acknowledgement.
func (c *Client) SetMode(logging, mouseOut bool) error {
	body := fmt.Sprintf("PROY103,%d,%d", boolToInt(logging), boolToInt(mouseOut))
	return c.ack(body, "$LOG103,1")
}

// SetStatus sends PROY104 to change sampling interval, fix type, and
// memory-full mode.
func (c *Client) SetStatus(sampleInterval, fixType int, mode MemFullMode) error {
	body := fmt.Sprintf("PROY104,0,%d,%d,%d", sampleInterval, fixType, int(mode))
	return c.ack(body, "$LOG104,1")
}

// EraseMemory wipes the device's log memory.
func (c *Client) EraseMemory() error {
	return c.ack("PROY109,-1", "$LOG109,1")
}

func (c *Client) ack(body, wantPrefix string) error {
	if err := c.send(body); err != nil {
		return err
	}
	n, err := c.r.ReadDelimited([]byte("$LOG"), []byte("\r\n"), timeoutGeneric)
	if err != nil {
		return wrap(SystemIO, err)
	}
	if n == 0 {
		return &Error{Kind: NoResponse}
	}
	raw := append([]byte(nil), c.r.Bytes()[:n]...)
	c.r.Discard(n)

	body2, err := nmea.Verify(raw)
	if err != nil {
		return wrap(ChecksumMismatch, err)
	}
	if !strings.HasPrefix(string(body2), strings.TrimPrefix(wantPrefix, "$")) {
		return newErr(UnexpectedResponse, "got %q, want prefix %q", body2, wantPrefix)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// asProtocolError unwraps err into *Error if possible.
func asProtocolError(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}
