// Package engine runs miniscript task scripts. It holds the task registry,
// the variable context threaded through a run, the static script parser,
// and the recursive executor implementing when, loop, register, block,
// fail and return
package engine
