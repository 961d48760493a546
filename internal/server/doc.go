// Package server exposes the script engine over HTTP: running and checking
// scripts, listing the task catalog and template languages, streaming run
// events over WebSocket, and serving Prometheus metrics
package server
