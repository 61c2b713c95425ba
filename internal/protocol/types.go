package protocol

import "time"

// MemFullMode is the logger's behaviour once its log memory fills.
type MemFullMode int

const (
	MemFullOverwrite MemFullMode = 0
	MemFullStop      MemFullMode = 1
)

// Status mirrors the device's $LOG108 status sentence.
type Status struct {
	FixType        int
	MemFullMode    MemFullMode
	SampleInterval int // seconds, 1..60
	GPSReceive     bool
	GPSMouseMode   bool // live NMEA emission on/off
	FileCount      int
	FixCount       int // fix count of the active (last) file

	// Opaque fields the device echoes in its status sentence (the u0, u1,
	// u2 slots of the $LOG108 catalogue entry); their semantics are
	// undocumented, so they are captured verbatim rather than interpreted.
	ReservedU0, ReservedU1, ReservedU2 string
}

// LogDescriptor is one entry from the device's log-file directory.
type LogDescriptor struct {
	Date       string // YYYYMMDD
	FixType    int
	FixCount   int
	MemPointer uint32 // device memory offset where the file begins
}

// DateTime is a (date, time) pair as the device reports it, kept as raw
// strings since the wire format ("YYYYMMDD", "HHMMSS") is what every
// consumer (listing, naming) wants directly.
type DateTime struct {
	Date string
	Time string
}

// LogBoundary is the first/last (date, time) pair across all stored files.
type LogBoundary struct {
	First, Last DateTime
}

// MemoryInfo describes the device's log memory geometry.
type MemoryInfo struct {
	TotalBytes  uint32
	SectorSize  uint32
	SectorCount uint32
}

// FirmwareInfo holds the four free-form strings scraped from the device's
// $PSRFTXT banner.
type FirmwareInfo struct {
	Version        string
	FirmwareTag    string
	DefaultBaud    string
	DriverRevision string
}

// readTimeout values in milliseconds, named per spec.md §5.
const (
	timeoutFixChunk    = 1000 * time.Millisecond
	timeoutStatusBound = 1500 * time.Millisecond
	timeoutGeneric     = 2000 * time.Millisecond
	timeoutListen      = 1500 * time.Millisecond
)

// maxChunkFixes is the largest number of fixes retrievable by a single
// PROY102 command.
const maxChunkFixes = 108
