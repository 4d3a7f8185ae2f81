// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package errutil bridges oops errors to slog output and test assertions.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. When err is an oops error its code
// and context are attached as structured attributes; otherwise only the
// error string is logged.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}
	attrs := make([]any, 0, 6)
	attrs = append(attrs, "error", oopsErr.Error())
	if code := oopsErr.Code(); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	logger.Error(msg, attrs...)
}
