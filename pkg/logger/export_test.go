package logger

// NewLoggerTo exposes the writer-backed constructor to the external test package.
var NewLoggerTo = newLogger
