//go:build !windows

package logging

// RegisterEventLogger does nothing. This file is built only on non-Windows platforms, and the
// module has no Windows event-log implementation.
func RegisterEventLogger(rootLogger Logger) {}
