// Package logger provides the structured logging interface used across snapdl.
//
// It wraps zerolog behind the Logger interface. The console writer is colored
// only when stderr is a terminal and automated mode is off; quiet mode raises
// the console threshold to error while an optional log file keeps the
// configured level.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("account", "someone")
//	log.InfoWithFields("Pass finished", map[string]interface{}{"downloaded": 3})
//
// Tests use NewTestLogger to capture messages or NewNopLogger to drop them.
package logger
