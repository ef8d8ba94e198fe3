// Package logging configures the structured logger every command and
// protocol engine writes through, so a run's output stays consistent
// regardless of which piece emitted it.
package logging

import "github.com/sirupsen/logrus"

// New builds a logrus.Logger at the given level ("debug", "info", "warn",
// "error"), falling back to info on an unrecognized level rather than
// failing the whole command over a typo in a flag.
func New(level string) *logrus.Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}
