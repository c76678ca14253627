package datachannel

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"
)

// Settings configures the process-wide default Engine. They are read from
// the environment the first time Default is called.
type Settings struct {
	// LibraryPath is an explicit path to libdatachannel. Empty searches the
	// platform library paths.
	LibraryPath string `env:"DATACHANNEL_LIBRARY_PATH"`

	// LogLevel is the native log level forwarded to the package logger.
	LogLevel string `env:"DATACHANNEL_LOG_LEVEL" envDefault:"warning"`

	// ICEServers are used by DefaultConfiguration.
	ICEServers []string `env:"DATACHANNEL_ICE_SERVERS" envSeparator:","`

	// AsyncDispatch moves listener invocation off native threads onto a
	// SerialExecutor with a queue of QueueSize.
	AsyncDispatch bool `env:"DATACHANNEL_ASYNC_DISPATCH"`
	QueueSize     int  `env:"DATACHANNEL_QUEUE_SIZE" envDefault:"1024"`
}

// LoadSettings reads Settings from the process environment.
func LoadSettings() (Settings, error) {
	return loadSettings(nil)
}

// loadSettings reads Settings from environ, or from the process environment
// when environ is nil.
func loadSettings(environ map[string]string) (Settings, error) {
	var s Settings
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.Parse(&s, opts); err != nil {
		return Settings{}, fmt.Errorf("datachannel: reading settings: %w", err)
	}
	if _, ok := ParseLogLevel(s.LogLevel); !ok {
		return Settings{}, fmt.Errorf("%w: log level %q", ErrInvalid, s.LogLevel)
	}
	return s, nil
}

// NativeLogLevel returns the parsed LogLevel.
func (s Settings) NativeLogLevel() LogLevel {
	l, _ := ParseLogLevel(s.LogLevel)
	return l
}

// DefaultConfiguration returns a Configuration using the ICE servers from
// the environment settings. Invalid settings are logged and yield an empty
// Configuration.
func DefaultConfiguration() Configuration {
	return defaultConfiguration(nil)
}

func defaultConfiguration(environ map[string]string) Configuration {
	s, err := loadSettings(environ)
	if err != nil {
		Logger().Warn("ignoring invalid settings", zap.Error(err))
		return Configuration{}
	}
	return Configuration{ICEServers: s.ICEServers}
}
