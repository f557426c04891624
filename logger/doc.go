// Package logger provides structured logging for relay services
// using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers carrying structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("dispatch")
//	log.Info("forwarded", logger.Fields("service", "provider", "status", 200))
package logger
