// Package logger provides the process-wide zap logger and request-scoped loggers.
//
// Init is called once from main; handlers and services obtain their logger with
// From(ctx), which falls back to the singleton when no scoped logger was injected.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Provider("facebook"))
//	log.Info("identity verified", logger.MaskedEmail(email))
//
// Provider tokens must never be logged raw; use MaskedToken.
package logger
