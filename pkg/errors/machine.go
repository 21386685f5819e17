package errors

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// MachineError collects every fatal error reported by one component.
// It only ever grows; previously recorded errors are never discarded.
type MachineError struct {
	Source string

	mu  sync.Mutex
	err error
}

// NewMachineError creates an empty aggregate for the named component
func NewMachineError(source string) *MachineError {
	return &MachineError{Source: source}
}

// Append widens the aggregate. Nil errors are ignored; nested MachineErrors
// are flattened so that every leaf stays visible.
func (m *MachineError) Append(errs ...error) *MachineError {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, err := range errs {
		if err == nil {
			continue
		}
		if nested, ok := err.(*MachineError); ok {
			for _, leaf := range nested.Errors() {
				m.err = multierr.Append(m.err, leaf)
			}
			continue
		}
		m.err = multierr.Append(m.err, err)
	}
	return m
}

// Errors returns a copy of every recorded error
func (m *MachineError) Errors() []error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return multierr.Errors(m.err)
}

// Len returns the number of recorded errors
func (m *MachineError) Len() int {
	return len(m.Errors())
}

// Empty reports whether nothing has been recorded
func (m *MachineError) Empty() bool {
	return m.Len() == 0
}

// ErrOrNil returns the aggregate when it holds errors, nil otherwise
func (m *MachineError) ErrOrNil() error {
	if m == nil || m.Empty() {
		return nil
	}
	return m
}

func (m *MachineError) Error() string {
	errs := m.Errors()
	switch len(errs) {
	case 0:
		return fmt.Sprintf("%s: no errors", m.Source)
	case 1:
		return fmt.Sprintf("%s: %v", m.Source, errs[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d errors occurred:", m.Source, len(errs))
	for _, err := range errs {
		fmt.Fprintf(&b, "\n\t* %v", err)
	}
	return b.String()
}

// Unwrap exposes the leaves to errors.Is and errors.As
func (m *MachineError) Unwrap() []error {
	return m.Errors()
}
