package logger

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// BackendLog is the logging backend used to create all subsystem loggers.
var BackendLog = NewBackend()

// SubsystemTags is an enum of all sub system tags.
var SubsystemTags = struct {
	CHAN,
	MMRT,
	POWD,
	EMDB,
	EMSM,
	SGNL string
}{
	CHAN: "CHAN",
	MMRT: "MMRT",
	POWD: "POWD",
	EMDB: "EMDB",
	EMSM: "EMSM",
	SGNL: "SGNL",
}

var (
	subsystemLock    sync.Mutex
	subsystemLoggers = make(map[string]*Logger)
)

// Get returns a logger of a specific sub system. The same logger is returned
// for repeated calls with the same tag.
func Get(tag string) (*Logger, error) {
	subsystemLock.Lock()
	defer subsystemLock.Unlock()

	log, ok := subsystemLoggers[tag]
	if !ok {
		log = BackendLog.Logger(tag)
		subsystemLoggers[tag] = log
	}
	return log, nil
}

// InitLog attaches log file and stdout to the backend log and starts it.
func InitLog(logFile string) error {
	err := BackendLog.AddLogWriter(os.Stdout, LevelInfo)
	if err != nil {
		return errors.Wrap(err, "couldn't add stdout to the logger")
	}
	if logFile != "" {
		err := BackendLog.AddLogFile(logFile, LevelTrace)
		if err != nil {
			return errors.Wrapf(err, "couldn't add log file %s to the logger", logFile)
		}
	}
	return BackendLog.Run()
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored. Uninitialized subsystems are dynamically created as
// needed.
func SetLogLevel(subsystemID string, logLevel string) {
	level, _ := LevelFromString(logLevel)

	subsystemLock.Lock()
	defer subsystemLock.Unlock()
	if log, ok := subsystemLoggers[subsystemID]; ok {
		log.SetLevel(level)
	}
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level. It also dynamically creates the subsystem loggers as needed, so it
// can be used to initialize the logging system.
func SetLogLevels(logLevel string) error {
	level, ok := LevelFromString(logLevel)
	if !ok {
		return errors.Errorf("invalid log level %s", logLevel)
	}

	subsystemLock.Lock()
	defer subsystemLock.Unlock()
	for _, log := range subsystemLoggers {
		log.SetLevel(level)
	}
	return nil
}
