// Package engine adapts the external speech-to-text engine behind a lazy,
// cancellable segment stream.
package engine
