package masternode

import (
	"github.com/btcsuite/btclog"
)

// log is a logger that is initialized with no output filters. The
// package performs no logging until the caller supplies one via
// UseLogger.
var log = btclog.Disabled

// DisableLog disables all library log output. Logging is disabled by
// default until UseLogger is called.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
