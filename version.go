// Package miniscript is an embeddable interpreter for YAML and JSON task
// scripts
package miniscript

const (
	Name    = "miniscript"
	Version = "0.1.0"
)
