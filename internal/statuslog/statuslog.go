// Package statuslog centralizes the "[tag] message" logging convention
// used throughout this codebase so every package doesn't repeat its own
// log.Printf formatting.
package statuslog

import "log"

// Tag returns a logger-style printer prefixed with "[tag] ".
type Tag string

// Printf logs a formatted message prefixed with the tag.
func (t Tag) Printf(format string, args ...any) {
	log.Printf("["+string(t)+"] "+format, args...)
}

// Println logs a message prefixed with the tag.
func (t Tag) Println(args ...any) {
	log.Println(append([]any{"[" + string(t) + "]"}, args...)...)
}
