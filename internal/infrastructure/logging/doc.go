// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON lines on stderr
//   - Development: colored console output
//
// Components receive a named child logger:
//
//	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	streamLog := logger.Component("acquire.stream")
//	streamLog.Info("connected", zap.String("address", addr), zap.Int("screen", 0))
package logging
