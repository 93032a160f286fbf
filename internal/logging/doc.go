// Package logging builds the zap loggers used by docragd and the docrag CLI.
//
// A Logger writes JSON or console lines to stdout or stderr, optionally teed
// into an OpenTelemetry log provider. Sensitive keys and token shaped
// values are redacted at the encoder, and entries below Error are sampled.
//
// Context carries correlation data that every ctx-taking method adds to
// the entry: the trace and span ids, the HTTP request id and the ingest
// stage.
//
//	logger, err := logging.NewLogger(cfg, nil)
//	ctx = logging.WithRequestID(ctx, id)
//	logger.Info(ctx, "question answered", zap.Int("docs", 12))
//
// Components take a plain *zap.Logger from logger.Underlying(); helpers in
// this package that read ctx (ContextFields) work with either.
package logging
