// Package logging provides structured logging using uber/zap.
//
// Production loggers write JSON; development loggers write colored console
// output. Lifecycle events (fork, exec, exit, harvest) are logged at debug
// with a pid field, so production output stays quiet unless a structural
// violation is about to panic.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Debug("fork", logging.Pid(parent), zap.Int32("child", child))
package logging
