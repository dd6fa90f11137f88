// Package logger declares the logging contract shared by the marketplace,
// the solver and the economy collaborators. Implementations live in
// infra/logger.
package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	// Infow logs a message with structured fields.
	Infow(msg string, fields map[string]any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Nop discards everything. Packages fall back to it when no logger is passed.
type Nop struct{}

func (Nop) Debugf(string, ...any)         {}
func (Nop) Debugw(string, map[string]any) {}
func (Nop) Infof(string, ...any)          {}
func (Nop) Infow(string, map[string]any)  {}
func (Nop) Warnf(string, ...any)          {}
func (Nop) Errorf(string, ...any)         {}
