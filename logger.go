// SPDX-License-Identifier: MIT

package xisf

import "log/slog"

// logDebug emits a Debug-level event at a suspension point (I/O dispatch,
// compression fallback, checksum verification). logger may be nil
// during internal construction before applyDefaults runs; callers on the
// public path always pass a non-nil logger.
func logDebug(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Debug(msg, args...)
}
