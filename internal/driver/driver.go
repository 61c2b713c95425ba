// Package driver implements the six verbs rtkctl exposes over a connected
// logger: status, date, list, set, read, and erase. Each verb takes an
// explicit *protocol.Client (and, for read, ui.Sinks) rather than reaching
// for package state, so a verb's side effects are exactly what's visible in its
// signature — no hidden globals, unlike the source tool's file-scope mode
// flags (spec.md §9).
package driver

import (
	"github.com/relabs-tech/rtkctl/internal/fix"
	"github.com/relabs-tech/rtkctl/internal/format"
	"github.com/relabs-tech/rtkctl/internal/geoid"
	"github.com/relabs-tech/rtkctl/internal/protocol"
	"github.com/relabs-tech/rtkctl/internal/ui"
)

// StatusReport is what the `status` verb prints; ExtendedMemory is only
// populated when the verb is invoked with -e.
type StatusReport struct {
	Status         protocol.Status
	ExtendedMemory *ExtendedMemory
}

// ExtendedMemory is the `-e` memory-usage breakdown: UsedBytes is the
// active (last) file's FixCount*wireSize(FixType) only. Other stored files
// are not counted, and a wrapped memory ring is not detected.
type ExtendedMemory struct {
	UsedBytes  uint32
	TotalBytes uint32
	FreeBytes  uint32
}

// Status reports the device's current status, optionally with the
// extended memory-usage breakdown. Like Read, it saves the device's mode
// outputs, leaves GPS-mouse-mode off while soliciting MemoryInfo, and
// restores the captured mode on every exit path via a protocol.RestoreGuard,
// so a status query never races a streaming device's 1 Hz NMEA flood.
func Status(c *protocol.Client, extended bool) (StatusReport, error) {
	st, err := c.Status()
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{Status: st}
	if !extended {
		return report, nil
	}

	guard := protocol.NewRestoreGuard(c, st)
	defer guard.Close()
	if err := c.SetMode(st.GPSReceive, false); err != nil {
		return StatusReport{}, err
	}

	mem, err := c.MemoryInfo()
	if err != nil {
		return StatusReport{}, err
	}
	wireSize, err := fix.WireSize(st.FixType)
	if err != nil {
		return StatusReport{}, err
	}
	used := uint32(st.FixCount * wireSize)
	report.ExtendedMemory = &ExtendedMemory{
		UsedBytes:  used,
		TotalBytes: mem.TotalBytes,
		FreeBytes:  mem.TotalBytes - used,
	}
	return report, nil
}

// Date reports the device's current UTC date/time.
func Date(c *protocol.Client) (protocol.DateTime, error) {
	return c.CurrentUTC()
}

// LogEntry is one `list` row: the descriptor plus its size in bytes
// (domain expansion, present in the original tool's listing but dropped
// from the distilled spec — harmless to restore).
type LogEntry struct {
	protocol.LogDescriptor
	SizeBytes int
}

// List enumerates every stored log file. It saves the device's mode
// outputs, leaves GPS-mouse-mode off while soliciting MemoryInfo/FileInfo,
// and restores the captured mode on every exit path via a
// protocol.RestoreGuard, the same discipline Read and Status apply.
func List(c *protocol.Client) ([]LogEntry, error) {
	st, err := c.Status()
	if err != nil {
		return nil, err
	}
	guard := protocol.NewRestoreGuard(c, st)
	defer guard.Close()
	if err := c.SetMode(st.GPSReceive, false); err != nil {
		return nil, err
	}

	mem, err := c.MemoryInfo()
	if err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, mem.SectorCount)
	for i := 0; ; i++ {
		d, err := c.FileInfo(i)
		if err != nil {
			if perr, ok := err.(*protocol.Error); ok && perr.Kind == protocol.InvalidCommand {
				break
			}
			return entries, err
		}
		wireSize, err := fix.WireSize(d.FixType)
		if err != nil {
			return entries, err
		}
		entries = append(entries, LogEntry{LogDescriptor: d, SizeBytes: d.FixCount * wireSize})
	}
	return entries, nil
}

// SetOptions carries the new configuration for the `set` verb; a nil
// pointer field leaves that setting unchanged.
type SetOptions struct {
	SampleInterval *int
	FixType        *int
	MemFullMode    *protocol.MemFullMode
	Logging        *bool
	GPSMouseMode   *bool
}

// Set applies a configuration change and leaves it in place — unlike the
// other verbs, it does not restore the prior mode on exit, since changing
// the mode permanently is the entire point.
func Set(c *protocol.Client, opts SetOptions) error {
	if opts.SampleInterval != nil || opts.FixType != nil || opts.MemFullMode != nil {
		st, err := c.Status()
		if err != nil {
			return err
		}
		interval, fixType, mode := st.SampleInterval, st.FixType, st.MemFullMode
		if opts.SampleInterval != nil {
			interval = *opts.SampleInterval
		}
		if opts.FixType != nil {
			fixType = *opts.FixType
		}
		if opts.MemFullMode != nil {
			mode = *opts.MemFullMode
		}
		if err := c.SetStatus(interval, fixType, mode); err != nil {
			return err
		}
	}
	if opts.Logging != nil || opts.GPSMouseMode != nil {
		st, err := c.Status()
		if err != nil {
			return err
		}
		logging, mouse := st.GPSReceive, st.GPSMouseMode
		if opts.Logging != nil {
			logging = *opts.Logging
		}
		if opts.GPSMouseMode != nil {
			mouse = *opts.GPSMouseMode
		}
		if err := c.SetMode(logging, mouse); err != nil {
			return err
		}
	}
	return nil
}

// ReadOptions configures the `read` verb.
type ReadOptions struct {
	MemPointer uint32
	FixType    int
	FixCount   int
	Grid       *geoid.Grid // nil disables geoid correction
	Out        format.Writer
}

// Read downloads every fix of a log file in 108-fix chunks, writing each
// through opts.Out as it arrives and reporting progress via sinks. The
// device's own mode outputs are saved and restored around the whole
// download via a protocol.RestoreGuard, so a read never leaves logging or
// GPS-mouse-mode changed even if the device was emitting live data when
// the verb started.
func Read(c *protocol.Client, opts ReadOptions, sinks ui.Sinks) (int, error) {
	st, err := c.Status()
	if err != nil {
		return 0, err
	}
	guard := protocol.NewRestoreGuard(c, st)
	defer guard.Close()

	if err := c.SetMode(false, false); err != nil {
		return 0, err
	}

	total := opts.FixCount
	done := 0
	memPointer := opts.MemPointer

	for done < total {
		want := total - done
		fixes, next, err := c.FetchFixes(memPointer, opts.FixType, want)
		if err != nil {
			return done, err
		}
		for _, f := range fixes {
			correction := 0.0
			if opts.Grid != nil {
				correction = opts.Grid.Correction(geoid.RadToDeg(f.LatitudeRad), geoid.RadToDeg(f.LongitudeRad))
			}
			if err := opts.Out.WriteFix(f, correction); err != nil {
				return done, err
			}
			done++
		}
		if sinks.Progress != nil {
			sinks.Progress(done, total)
		}
		if len(fixes) == 0 {
			break
		}
		memPointer = next
	}
	return done, nil
}

// Erase wipes the device's log memory.
func Erase(c *protocol.Client) error {
	return c.EraseMemory()
}
