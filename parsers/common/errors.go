// Package common provides error types shared by the parser strategies.
package common

import "fmt"

// ParserError represents a general parsing error inside a strategy.
type ParserError struct {
	Message string
}

func (e *ParserError) Error() string {
	return fmt.Sprintf("parser error: %s", e.Message)
}

// NewParserError creates a new ParserError
func NewParserError(message string) *ParserError {
	return &ParserError{Message: message}
}

// UnavailableError indicates a strategy whose optional dependency is not
// installed; the orchestrator maps it to a friendly operator message.
type UnavailableError struct {
	Dependency string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("parser unavailable: optional dependency '%s' is not installed", e.Dependency)
}

// NewUnavailableError creates a new UnavailableError
func NewUnavailableError(dependency string) *UnavailableError {
	return &UnavailableError{Dependency: dependency}
}

// CorruptContainerError indicates a compound-document container that could
// not be opened or walked.
type CorruptContainerError struct {
	Reason string
}

func (e *CorruptContainerError) Error() string {
	return fmt.Sprintf("corrupt container: %s", e.Reason)
}

// NewCorruptContainerError creates a new CorruptContainerError
func NewCorruptContainerError(reason string) *CorruptContainerError {
	return &CorruptContainerError{Reason: reason}
}
