// Command rtkctl talks to a RoyalTek RGM/RTK GPS data logger over a serial
// or Bluetooth RFCOMM link: it reports status, lists and downloads track
// logs, changes logging configuration, and erases log memory.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/rtkctl/internal/driver"
	"github.com/relabs-tech/rtkctl/internal/format"
	"github.com/relabs-tech/rtkctl/internal/format/native"
	"github.com/relabs-tech/rtkctl/internal/format/nmeaout"
	"github.com/relabs-tech/rtkctl/internal/frame"
	"github.com/relabs-tech/rtkctl/internal/geoid"
	"github.com/relabs-tech/rtkctl/internal/protocol"
	"github.com/relabs-tech/rtkctl/internal/transport"
	"github.com/relabs-tech/rtkctl/internal/transport/rfcomm"
	"github.com/relabs-tech/rtkctl/internal/transport/serial"
	"github.com/relabs-tech/rtkctl/internal/ui"
)

// Exit codes, one per protocol.Kind plus success and usage error.
const (
	exitOK = iota
	exitUsage
	exitSystemIO
	exitParseError
	exitChecksumMismatch
	exitNoResponse
	exitUnexpectedResponse
	exitInvalidCommand
	exitAllocationFailure
)

var log = logrus.New()

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rtkctl <status|date|list|set|read|erase> [-d device] [-r baud] [-b channel] [-v] [verb flags]")
}

func run(args []string) int {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(args) == 0 {
		usage()
		return exitUsage
	}
	verb := args[0]
	rest := args[1:]

	switch verb {
	case "status", "date", "list", "set", "read", "erase":
	default:
		usage()
		return exitUsage
	}

	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	dPort := fs.String("d", "", "serial device path or bluetooth address")
	dBaud := fs.Int("r", transport.DefaultBaudRate, "serial baud rate")
	dChannel := fs.Int("b", 1, "bluetooth RFCOMM channel")
	dVerbose := fs.Bool("v", false, "verbose operational logging")
	extended := fs.Bool("e", false, "status: include extended memory usage")
	fixType := fs.Int("fixtype", 0, "set: fix type 0-4")
	interval := fs.Int("interval", 0, "set: sample interval seconds")
	memMode := fs.Int("memmode", 0, "set: memory-full mode (0=overwrite,1=stop)")
	logging := fs.Bool("logging", false, "set: enable logging")
	mouseMode := fs.Bool("mouse", false, "set: enable GPS-mouse live NMEA output")
	outPath := fs.String("o", "", "read: output file path template (%d date, %s session; %t expands to empty)")
	dialect := fs.String("format", "nmea", "read: output dialect: nmea or native")
	geoidPath := fs.String("geoid", "", "read: geoid grid file for corrected altitudes")
	fileIndex := fs.Int("file", 0, "read: log file index to download")

	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}

	if *dVerbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	t, err := openTransport(*dPort, *dBaud, *dChannel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSystemIO
	}
	if err := t.Open(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSystemIO
	}
	defer t.Close()

	sinks := ui.Sink(os.Stdout)
	client := protocol.New(frame.New(t, 0), sinks.Warn)

	log.WithField("verb", verb).Debug("dispatching")

	switch verb {
	case "status":
		return doStatus(client, *extended)
	case "date":
		return doDate(client)
	case "list":
		return doList(client)
	case "set":
		return doSet(client, *fixType, *interval, *memMode, *logging, *mouseMode)
	case "read":
		return doRead(client, sinks, *fileIndex, *outPath, *dialect, *geoidPath)
	case "erase":
		return doErase(client)
	}
	return exitUsage
}

func openTransport(addr string, baud, channel int) (transport.Transport, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing -d device/address")
	}
	if transport.ValidBaudRate(baud) && looksLikeSerialPath(addr) {
		return serial.New(addr, baud), nil
	}
	return rfcomm.New(addr, uint8(channel)), nil
}

func looksLikeSerialPath(addr string) bool {
	return len(addr) > 0 && (addr[0] == '/' || (len(addr) > 3 && addr[:3] == "COM"))
}

func doStatus(c *protocol.Client, extended bool) int {
	report, err := driver.Status(c, extended)
	if err != nil {
		return reportErr(err)
	}
	st := report.Status
	fmt.Printf("fix type: %d, sample interval: %ds, logging: %v, GPS mouse: %v, files: %d, fixes: %d\n",
		st.FixType, st.SampleInterval, st.GPSReceive, st.GPSMouseMode, st.FileCount, st.FixCount)
	if report.ExtendedMemory != nil {
		m := report.ExtendedMemory
		fmt.Printf("memory: %d/%d bytes used, %d free\n", m.UsedBytes, m.TotalBytes, m.FreeBytes)
	}
	return exitOK
}

func doDate(c *protocol.Client) int {
	dt, err := driver.Date(c)
	if err != nil {
		return reportErr(err)
	}
	fmt.Printf("%s %s UTC\n", dt.Date, dt.Time)
	return exitOK
}

func doList(c *protocol.Client) int {
	entries, err := driver.List(c)
	if err != nil {
		return reportErr(err)
	}
	for i, e := range entries {
		fmt.Printf("%d: %s fixtype=%d fixes=%d bytes=%d\n", i, e.Date, e.FixType, e.FixCount, e.SizeBytes)
	}
	return exitOK
}

func doSet(c *protocol.Client, fixType, interval, memMode int, logging, mouse bool) int {
	mode := protocol.MemFullMode(memMode)
	opts := driver.SetOptions{
		SampleInterval: &interval,
		FixType:        &fixType,
		MemFullMode:    &mode,
		Logging:        &logging,
		GPSMouseMode:   &mouse,
	}
	if err := driver.Set(c, opts); err != nil {
		return reportErr(err)
	}
	return exitOK
}

func doRead(c *protocol.Client, sinks ui.Sinks, fileIndex int, outPath, dialect, geoidPath string) int {
	d, err := c.FileInfo(fileIndex)
	if err != nil {
		return reportErr(err)
	}

	var grid *geoid.Grid
	if geoidPath != "" {
		grid, err = geoid.Open(geoidPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitSystemIO
		}
		defer grid.Close()
	}

	session := uuid.New().String()[:8]
	path := outPath
	if path == "" {
		path = fmt.Sprintf("%s-%s.log", d.Date, session)
	} else {
		path = ui.ExpandTemplate(path, d.Date, "", session)
	}
	if err := ui.BackupExisting(path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSystemIO
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSystemIO
	}
	defer f.Close()

	var w format.Writer
	if dialect == "native" {
		w = native.New(f, grid != nil, d.FixCount)
	} else {
		w = nmeaout.New(f)
	}
	if err := w.WriteHeader(d.FixType, d.Date); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSystemIO
	}

	start := time.Now()
	n, err := driver.Read(c, driver.ReadOptions{
		MemPointer: d.MemPointer,
		FixType:    d.FixType,
		FixCount:   d.FixCount,
		Grid:       grid,
		Out:        w,
	}, sinks)
	log.WithFields(logrus.Fields{"fixes": n, "elapsed": time.Since(start), "session": session}).Info("read complete")
	if err != nil {
		return reportErr(err)
	}
	return exitOK
}

func doErase(c *protocol.Client) int {
	if err := driver.Erase(c); err != nil {
		return reportErr(err)
	}
	return exitOK
}

func reportErr(err error) int {
	fmt.Fprintln(os.Stderr, err)
	perr, ok := err.(*protocol.Error)
	if !ok {
		return exitSystemIO
	}
	switch perr.Kind {
	case protocol.ParseError:
		return exitParseError
	case protocol.ChecksumMismatch:
		return exitChecksumMismatch
	case protocol.NoResponse:
		return exitNoResponse
	case protocol.UnexpectedResponse:
		return exitUnexpectedResponse
	case protocol.InvalidCommand:
		return exitInvalidCommand
	case protocol.AllocationFailure:
		return exitAllocationFailure
	default:
		return exitSystemIO
	}
}
