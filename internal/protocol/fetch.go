package protocol

import (
	"bytes"
	"fmt"

	"github.com/relabs-tech/rtkctl/internal/fix"
	"github.com/relabs-tech/rtkctl/internal/nmea"
)

// invalidChunkSentence is the device's fixed refusal reply to a PROY102
// request it will not honour (memory pointer past end of file, fix type
// mismatch, and so on).
const invalidChunkSentence = "$LOG102,0*6B"

// headerBytes is the length of a $LOG102 reply sentence's fixed header:
// the 8-byte "$LOG102," tag, a 1-byte sentence index, a 1-byte echoed
// fix-type/reserved byte, and the 1-byte remaining payload byte count
// (rbc) at offset 10.
const headerBytes = 11

// FetchFixes retrieves up to maxChunkFixes fixes of fixType starting at
// memPointer with a single PROY102 command. The device answers one
// PROY102 with one or more $LOG102 reply sentences, each carrying a
// sentence index (offset 8) that must increase 0, 1, 2, … across the
// chunk (spec invariant ii); an out-of-order index is reported through the
// warning sink but does not abort the read — the expected counter advances
// unconditionally rather than re-basing on the received index. FetchFixes
// keeps reading reply sentences until it has decoded count fixes; a device
// that stops sending before then ends the call with an error. It reports the
// device's next memory pointer (for the caller's outer chunk loop) and the
// fixes decoded so far even when it returns a non-nil error, so a caller
// can keep partial progress on a mid-chunk failure.
func (c *Client) FetchFixes(memPointer uint32, fixType, count int) ([]fix.Fix, uint32, error) {
	if count <= 0 {
		return nil, memPointer, nil
	}
	if count > maxChunkFixes {
		count = maxChunkFixes
	}

	wireSize, err := fix.WireSize(fixType)
	if err != nil {
		return nil, memPointer, wrap(ParseError, err)
	}

	if err := c.send(fmt.Sprintf("PROY102,%d,%d,%d", memPointer, fixType, count)); err != nil {
		return nil, memPointer, err
	}

	fixes := make([]fix.Fix, 0, count)
	next := memPointer
	wantIndex := 0

	for len(fixes) < count {
		// Step 1: find the "$LOG102," prefix, discarding anything ahead of it.
		found, err := c.r.ReadUntil([]byte("$LOG102,"), timeoutFixChunk)
		if err != nil {
			return fixes, next, wrap(SystemIO, err)
		}
		if found == 0 {
			if c.r.Len() == 0 {
				return fixes, next, &Error{Kind: NoResponse}
			}
			return fixes, next, newErr(ParseError, "fix chunk: no $LOG102 sentence in received bytes")
		}

		// Step 2: top up to at least 11 bytes so the header (index byte at
		// offset 8, remaining payload byte count at offset 10) is fully
		// present.
		for c.r.Len() < headerBytes {
			before := c.r.Len()
			if _, err := c.r.ReadRepeat(timeoutFixChunk); err != nil {
				return fixes, next, wrap(SystemIO, err)
			}
			if c.r.Len() == before {
				return fixes, next, &Error{Kind: NoResponse}
			}
		}

		head := c.r.Bytes()
		if bytes.HasPrefix(head, []byte(invalidChunkSentence)) {
			c.r.Discard(len(invalidChunkSentence))
			return fixes, next, &Error{Kind: InvalidCommand}
		}

		// Step 3: rbc at offset 10 is the remaining byte count of this
		// reply sentence's payload, not a record count; the device may
		// split a chunk across several sentences (and may honour fewer
		// than requested near end of file). The record count is rbc
		// divided by the wire size of one record.
		rbc := int(head[10])
		if rbc == 0 {
			return fixes, next, &Error{Kind: InvalidCommand}
		}
		nrec := rbc / wireSize

		idx := int(head[8])
		if idx != wantIndex {
			c.warn(fmt.Sprintf("fix chunk at pointer %d: expected sentence index %d, got %d", memPointer, wantIndex, idx))
		}
		wantIndex++

		// Step 4: total sentence length is the 11-byte header, rbc payload
		// bytes, and a 5-byte trailer ("*HH\r\n").
		total := headerBytes + rbc + 5
		for c.r.Len() < total {
			before := c.r.Len()
			if _, err := c.r.ReadRepeat(timeoutFixChunk); err != nil {
				return fixes, next, wrap(SystemIO, err)
			}
			if c.r.Len() == before {
				return fixes, next, &Error{Kind: NoResponse}
			}
		}

		raw := append([]byte(nil), c.r.Bytes()[:total]...)
		c.r.Discard(total)

		// Step 5: checksum covers the whole sentence body (header tag
		// through the last fix record), computed over the ASCII+binary
		// bytes together.
		body, err := nmea.Verify(raw)
		if err != nil {
			return fixes, next, wrap(ChecksumMismatch, err)
		}

		// Step 6/7: the 11-byte header (tag, sentence index, reserved byte,
		// rbc) sits ahead of the packed records; the binary payload
		// begins at the same offset within body as it did within raw (11
		// minus the leading '$' that Verify already stripped).
		payloadStart := headerBytes - 1
		if payloadStart < 0 || payloadStart > len(body) {
			return fixes, next, newErr(ParseError, "fix chunk: payload offset %d out of range", payloadStart)
		}
		payload := body[payloadStart:]

		for i := 0; i < nrec && len(fixes) < count; i++ {
			off := i * wireSize
			if off+wireSize > len(payload) {
				return fixes, next, newErr(ParseError, "fix chunk: record %d truncated", i)
			}
			f, err := fix.Decode(payload[off:off+wireSize], fixType, false)
			if err != nil {
				return fixes, next, wrap(ParseError, err)
			}
			if f.Suspect {
				c.warn(fmt.Sprintf("fix %d in chunk at pointer %d failed sanity check", len(fixes), memPointer))
			}
			fixes = append(fixes, f)
			next += uint32(wireSize)
		}

		// Step 8: any bytes past this sentence's tail already remain
		// buffered (Discard only removed exactly total bytes above), ready
		// for the next iteration's ReadUntil.
	}

	return fixes, next, nil
}
