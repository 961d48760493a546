// Package api defines the core data types shared by the script engine
//
// This package contains the task node model, task schemas, execution
// outcomes, run events, HTTP messages, and the error taxonomy that callers
// use to tell script problems apart from catalog and data problems
package api
