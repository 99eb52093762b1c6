// Package logging provides structured logging for ragd.
//
// The package wraps Zap with:
//   - a Trace level below Debug
//   - stdout output plus an optional OpenTelemetry log bridge
//   - context field injection (trace_id, request.id, document.id)
//   - redaction of sensitive keys and value patterns
//   - level-aware sampling where errors are never dropped
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithDocumentID(ctx, docID)
//	logger.Info(ctx, "document indexed", zap.Int("chunks", n))
//
// Components that accept a plain *zap.Logger receive logger.Underlying().
package logging
