package badgerstore

import (
	"strings"

	"github.com/rs/zerolog"
)

// badgerLogger forwards Badger's printf-style logging to zerolog.
// Badger logs at info level on every open and compaction, so info is
// demoted to debug.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(trim(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(trim(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(trim(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(trim(format), args...)
}

func trim(format string) string {
	return strings.TrimSuffix(format, "\n")
}
