// Package httpserver runs courier's HTTP surface with graceful shutdown.
//
// Server.Run blocks until the context is cancelled or Shutdown is called;
// errors are wrapped with ErrStart and ErrShutdown. LivenessHandler and
// ReadinessHandler implement the /health/live and /health/ready probes; the
// readiness handler runs every registered check and reports which failed.
package httpserver
