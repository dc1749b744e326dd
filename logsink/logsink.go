// Package logsink configures the write-only diagnostic log every core
// operation appends a record to. It is write-only from the core's
// perspective: nothing in this module parses the file back.
package logsink

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Open appends to path (creating it if missing) and returns a *logrus.Logger
// configured with a plain, timestamp-free text formatter — records are
// operation-ordered, not wall-clock-queried, so repeating the time on every
// line would just be noise. The returned io.Closer releases the underlying
// file; callers should defer it for the lifetime of the mount.
func Open(path string) (*logrus.Logger, io.Closer, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetOutput(file)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.InfoLevel)

	return log, file, nil
}
