// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup sets level and format on the standard logrus logger. Unknown levels
// fall back to info; format "json" selects the JSON formatter.
func Setup(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	parsed, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if err != nil && level != "" {
		log.WithField("level", level).Warn("unknown log level, using info")
	}
}
