package stakekit

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NopLogger returns a logger entry that discards everything. Components fall
// back to it when the caller does not supply a logger.
func NopLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
