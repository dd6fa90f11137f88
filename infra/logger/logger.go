package logger

import corelogger "github.com/SebastianAlessandro/gcam-core/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop
