// Package errors provides the classified error primitives used across sitegen.
//
// Every failure that reaches a user is a ClassifiedError carrying a category
// (config, metadata, filesystem, render, task, ...), a severity and a small
// context map. The CLI adapter turns categories into process exit codes.
//
// Example usage:
//
//	err := errors.FileSystemError("write output").
//		WithContext("path", target).
//		WithCause(ioErr).
//		Build()
package errors
