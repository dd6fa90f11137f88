// Package monitoring defines how failures that do not abort a run, such as a
// period that fails to converge, are reported to an external tracker.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor drops every report.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}
