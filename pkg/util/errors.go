// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the run-level and device-level failure kinds
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrGroup            = errors.New("invalid device group")
	ErrUnreachable      = errors.New("device unreachable")
	ErrPendingState     = errors.New("uncommitted configuration present")
	ErrSession          = errors.New("device session failed")
	ErrBackup           = errors.New("backup failed")
	ErrLocked           = errors.New("group locked by another run")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// ValidationError represents one or more validation failures.
// Warnings are carried along so callers can still show them when the
// document is rejected.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed with %d errors:\n  - %s", len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors and warnings
type ValidationBuilder struct {
	errors   []string
	warnings []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// AddWarningf adds a formatted warning; warnings never fail Build.
func (v *ValidationBuilder) AddWarningf(format string, args ...interface{}) *ValidationBuilder {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns the accumulated error messages
func (v *ValidationBuilder) Errors() []string {
	return v.errors
}

// Warnings returns the accumulated warnings
func (v *ValidationBuilder) Warnings() []string {
	return v.warnings
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors, Warnings: v.warnings}
}

// GroupError reports a group that is missing, does not hold exactly two
// devices, or lists one address twice.
type GroupError struct {
	Group       string
	Found       int // device count; -1 when the group does not exist
	Available   []string
	Suggestions []string
	Duplicate   string // address listed more than once
}

func (e *GroupError) Error() string {
	if e.Found < 0 {
		msg := fmt.Sprintf("group '%s' not found", e.Group)
		if len(e.Suggestions) > 0 {
			msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
		}
		if len(e.Available) > 0 {
			msg += ". Available groups: " + strings.Join(e.Available, ", ")
		}
		return msg
	}
	if e.Duplicate != "" {
		return fmt.Sprintf("group '%s' must have 2 distinct devices, address %s is listed twice", e.Group, e.Duplicate)
	}
	return fmt.Sprintf("group '%s' must have exactly 2 devices, found %d", e.Group, e.Found)
}

func (e *GroupError) Unwrap() error {
	return ErrGroup
}

// ConnectivityError lists the devices that failed the reachability check.
type ConnectivityError struct {
	Devices []string
	Err     error
}

func (e *ConnectivityError) Error() string {
	msg := "unreachable: " + strings.Join(e.Devices, ", ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectivityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnreachable}
	}
	return []error{ErrUnreachable, e.Err}
}

// PendingStateError lists candidate-only lines found per device.
type PendingStateError struct {
	Pending map[string][]string
}

// Devices returns the affected devices in sorted order.
func (e *PendingStateError) Devices() []string {
	devices := make([]string, 0, len(e.Pending))
	for d := range e.Pending {
		devices = append(devices, d)
	}
	sort.Strings(devices)
	return devices
}

func (e *PendingStateError) Error() string {
	parts := make([]string, 0, len(e.Pending))
	for _, d := range e.Devices() {
		parts = append(parts, fmt.Sprintf("%s (%d lines)", d, len(e.Pending[d])))
	}
	return "pending configuration found on " + strings.Join(parts, ", ") +
		"; clean uncommitted configuration before proceeding"
}

func (e *PendingStateError) Unwrap() error {
	return ErrPendingState
}

// SessionError is a connect/lock/load/commit failure on one device.
type SessionError struct {
	Device string
	Stage  string
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Device, e.Stage, e.Err)
}

func (e *SessionError) Unwrap() []error {
	return []error{ErrSession, e.Err}
}

// NewSessionError wraps err with device and stage context
func NewSessionError(device, stage string, err error) *SessionError {
	return &SessionError{Device: device, Stage: stage, Err: err}
}

// BackupError aborts a single device before anything is mutated.
type BackupError struct {
	Device string
	Err    error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup of %s failed: %v", e.Device, e.Err)
}

func (e *BackupError) Unwrap() []error {
	return []error{ErrBackup, e.Err}
}

// LockedError reports a group already held by another run.
type LockedError struct {
	Group  string
	Holder string
}

func (e *LockedError) Error() string {
	if e.Holder == "" {
		return fmt.Sprintf("group '%s' is locked by another run", e.Group)
	}
	return fmt.Sprintf("group '%s' is locked by %s", e.Group, e.Holder)
}

func (e *LockedError) Unwrap() error {
	return ErrLocked
}
