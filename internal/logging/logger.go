package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the global logrus logger. When path is non-empty the
// log is mirrored to that file in addition to stdout.
func Setup(level string, path string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, file))
	}

	return nil
}

// Component returns an entry tagged with the component name. Engine
// packages log through these entries so every line carries its origin.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
