package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ErrorType classifies a ConfigurationError.
type ErrorType = string

const (
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeValidation ErrorType = "validation"
)

// ConfigurationError describes a settings file that could not be used.
// Suggestions list what the operator can change to fix it.
type ConfigurationError struct {
	FilePath    string    `json:"filePath"`
	FileName    string    `json:"fileName"`
	ErrorType   ErrorType `json:"errorType"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("[settings/%s] %s: %s", ce.ErrorType, ce.FileName, ce.Message)
}

// DetailedError renders the error with its path, details and suggestions,
// one item per line.
func (ce ConfigurationError) DetailedError() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invalid settings in %s (%s)\n", ce.FilePath, ce.ErrorType)
	fmt.Fprintf(&b, "  %s", ce.Message)
	if ce.Details != "" {
		fmt.Fprintf(&b, "\n  %s", ce.Details)
	}
	for _, s := range ce.Suggestions {
		fmt.Fprintf(&b, "\n    - %s", s)
	}
	return b.String()
}

// NewConfigurationError creates a ConfigurationError for filePath.
func NewConfigurationError(filePath string, errorType ErrorType, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		ErrorType: errorType,
		Message:   message,
	}
}
