// Package logger wires the per-subsystem loggers used across the rollup
// core onto a single rotating-file backend.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jrick/logrotate/rotator"

	"github.com/dagrollup/rollupcore/internal/logs"
)

// logWriter fans writes out to stdout and the active log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

type errLogWriter struct{}

func (errLogWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		ErrLogRotator.Write(p)
	}
	return len(p), nil
}

// SubsystemTags is an enum of every subsystem that owns its own logger.
// When adding a new long-lived task, add its tag here and to
// subsystemLoggers.
var SubsystemTags = struct {
	APPT, // app/process supervisor
	MTRE, // merkletree
	STAT, // stateengine
	MEMP, // mempool
	BLKB, // blockbuilder
	REST, // datarestorer
	PERS, // persistence / dbaccess / storage
	SUBM, // ethsender (ChainSubmitter)
	EVTS string // eventsource
}{
	APPT: "APPT",
	MTRE: "MTRE",
	STAT: "STAT",
	MEMP: "MEMP",
	BLKB: "BLKB",
	REST: "REST",
	PERS: "PERS",
	SUBM: "SUBM",
	EVTS: "EVTS",
}

var (
	backendLog = logs.NewBackend([]*logs.BackendWriter{
		logs.NewAllLevelsBackendWriter(logWriter{}),
		logs.NewErrorBackendWriter(errLogWriter{}),
	})

	// LogRotator and ErrLogRotator must be closed on shutdown.
	LogRotator    *rotator.Rotator
	ErrLogRotator *rotator.Rotator

	apptLog = backendLog.Logger(SubsystemTags.APPT)
	mtreLog = backendLog.Logger(SubsystemTags.MTRE)
	statLog = backendLog.Logger(SubsystemTags.STAT)
	mempLog = backendLog.Logger(SubsystemTags.MEMP)
	blkbLog = backendLog.Logger(SubsystemTags.BLKB)
	restLog = backendLog.Logger(SubsystemTags.REST)
	persLog = backendLog.Logger(SubsystemTags.PERS)
	submLog = backendLog.Logger(SubsystemTags.SUBM)
	evtsLog = backendLog.Logger(SubsystemTags.EVTS)

	initiated = false
)

var subsystemLoggers = map[string]logs.Logger{
	SubsystemTags.APPT: apptLog,
	SubsystemTags.MTRE: mtreLog,
	SubsystemTags.STAT: statLog,
	SubsystemTags.MEMP: mempLog,
	SubsystemTags.BLKB: blkbLog,
	SubsystemTags.REST: restLog,
	SubsystemTags.PERS: persLog,
	SubsystemTags.SUBM: submLog,
	SubsystemTags.EVTS: evtsLog,
}

// InitLogRotators must be called before any subsystem logger is used:
// until it runs, every write is dropped, stdout included, so Get()
// loggers produce no output at all.
func InitLogRotators(logFile, errLogFile string) {
	initiated = true
	LogRotator = initLogRotator(logFile)
	ErrLogRotator = initLogRotator(errLogFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// Get returns the logger for the given subsystem tag.
func Get(tag string) (logger logs.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// SetLogLevel sets the level of a single subsystem. Unknown subsystems are
// ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := logs.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets every subsystem to the given level.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels parses a "level" or "TAG=level,TAG=level" spec.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if _, ok := logs.LevelFromString(debugLevel); !ok {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, pair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(pair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", pair)
		}
		fields := strings.Split(pair, "=")
		subsysID, logLevel := fields[0], fields[1]
		if _, ok := Get(subsysID); !ok {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- supported subsystems %s",
				subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if _, ok := logs.LevelFromString(logLevel); !ok {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}
	return nil
}

// SupportedSubsystems returns every known subsystem tag, sorted.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for tag := range subsystemLoggers {
		subsystems = append(subsystems, tag)
	}
	sort.Strings(subsystems)
	return subsystems
}
