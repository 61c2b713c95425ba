// Package ui holds the small console collaborators every verb shares:
// deduplicated warnings, a progress line, and output-filename handling.
// None of it talks to the device directly; it is wired in by cmd/rtkctl
// and threaded through internal/driver as plain values, never package
// state, the way cmd/top708reader keeps its own flags and state local to
// main rather than behind globals reached from deep call sites.
package ui

import "fmt"

// Sinks bundles the callables a driver verb reports through. Warn
// receives deduplicated protocol-level diagnostics (spec.md §7); Progress
// receives (done, total) counts for the current bulk transfer. Either may
// be nil, in which case the matching report is a no-op.
type Sinks struct {
	Warn     func(string)
	Progress func(done, total int)
}

// Sink builds a Sinks backed by a deduplicating warning writer and a
// carriage-return progress writer over w, both in the teacher's
// bare-fmt.Printf console style (no terminal framework).
func Sink(w Writer) Sinks {
	return Sinks{Warn: NewDedupWarner(w), Progress: (&progressWriter{w: w}).report}
}

// Writer is the minimal console surface ui needs; *os.File satisfies it.
type Writer interface {
	Write(p []byte) (int, error)
}

// dedupWarner prints each distinct warning message once per log file being
// processed, as long as the caller builds a fresh one (via NewDedupWarner)
// for each file.
type dedupWarner struct {
	w    Writer
	seen map[string]struct{}
}

// NewDedupWarner returns a fresh Warn func with an empty seen-set.
// cmd/rtkctl builds one per run (via Sink), and a run downloads one log file.
func NewDedupWarner(w Writer) func(string) {
	d := &dedupWarner{w: w, seen: map[string]struct{}{}}
	return d.warn
}

func (d *dedupWarner) warn(msg string) {
	if _, ok := d.seen[msg]; ok {
		return
	}
	d.seen[msg] = struct{}{}
	fmt.Fprintf(d.w, "\r\x1b[Kwarning: %s\n", msg)
}

// progressWriter renders a "done/total" line, clearing and rewriting in
// place with a carriage return rather than a terminal library.
type progressWriter struct {
	w Writer
}

func (p *progressWriter) report(done, total int) {
	if total <= 0 {
		fmt.Fprintf(p.w, "\r\x1b[K%d fixes read", done)
		return
	}
	fmt.Fprintf(p.w, "\r\x1b[K%d/%d fixes read (%d%%)", done, total, done*100/total)
}
