package logger

import (
	"time"

	"snapdl/pkg/models"
)

// LogRequest logs HTTP request information
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500 || statusCode == 0:
		l.WarnWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the final state of one item
func LogDownload(l Logger, rec models.DownloadRecord) {
	log := l.WithFields(map[string]interface{}{
		"account":  rec.Item.Account,
		"item_id":  rec.Item.ID,
		"category": string(rec.Item.Category),
		"status":   string(rec.Status),
		"attempts": rec.Attempts,
	})

	switch rec.Status {
	case models.StatusFailed:
		log.WithError(rec.Err).Error("Download failed")
	case models.StatusSkipped:
		log.Debug("Download skipped")
	case models.StatusDone:
		if rec.Existing {
			log.Debug("Media already on disk")
		} else {
			log.WithField("bytes", rec.Bytes).Debug("Download completed")
		}
	}
}

// LogAccountSummary logs the per-account outcome of a pass
func LogAccountSummary(l Logger, s models.PassSummary) {
	fields := map[string]interface{}{
		"account":           s.Account,
		"found":             s.Found,
		"downloaded":        s.Downloaded,
		"skipped_duplicate": s.SkippedDuplicate,
		"skipped_existing":  s.SkippedExisting,
		"failed":            s.Failed,
	}
	if s.Combined > 0 {
		fields["combined"] = s.Combined
	}

	switch {
	case s.Err != nil:
		l.WithError(s.Err).ErrorWithFields("Account pass aborted", fields)
	case s.Failed > 0:
		l.WarnWithFields("Account pass finished with failures", fields)
	default:
		l.InfoWithFields("Account pass finished", fields)
	}
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	log := l.WithField("component", component)
	if len(settings) > 0 {
		log = log.WithFields(settings)
	}
	log.Debug("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Debug("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                    {}
func (n nopLogger) Info(string)                                     {}
func (n nopLogger) Warn(string)                                     {}
func (n nopLogger) Error(string)                                    {}
func (n nopLogger) WithField(string, interface{}) Logger            { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger        { return n }
func (n nopLogger) WithError(error) Logger                          { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{}) {}
