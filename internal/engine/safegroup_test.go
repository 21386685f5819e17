package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/smoker/smoker/pkg/logger"
)

// TestSafeGroupPanicRecovery tests that SafeGroup properly recovers from panics
func TestSafeGroupPanicRecovery(t *testing.T) {
	tests := []struct {
		name          string
		operations    []func() error
		expectError   bool
		errorContains string
	}{
		{
			name: "successful operations",
			operations: []func() error{
				func() error { return nil },
				func() error { return nil },
				func() error { return nil },
			},
			expectError: false,
		},
		{
			name: "one operation returns error",
			operations: []func() error{
				func() error { return nil },
				func() error { return errors.New("workspace discovery failed") },
				func() error { return nil },
			},
			expectError:   true,
			errorContains: "workspace discovery failed",
		},
		{
			name: "one operation panics",
			operations: []func() error{
				func() error { return nil },
				func() error { panic("resolver exploded") },
				func() error { return nil },
			},
			expectError:   true,
			errorContains: "goroutine panic",
		},
		{
			name: "multiple operations panic",
			operations: []func() error{
				func() error { panic("panic 1") },
				func() error { panic("panic 2") },
				func() error { return nil },
			},
			expectError:   true,
			errorContains: "goroutine panic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.CreateLoggerWithOutput("", "debug", io.Discard)

			g, _ := NewSafeGroup(context.Background(), log)

			for _, op := range tt.operations {
				g.Go(op)
			}

			err := g.Wait()

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing '%s', got: %v", tt.errorContains, err)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSafeGroupCancelsSiblings(t *testing.T) {
	g, ctx := NewSafeGroup(context.Background(), logger.NewNopLogger())

	g.Go(func() error { return errors.New("first") })
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := g.Wait(); err == nil || err.Error() != "first" {
		t.Errorf("Wait() = %v, want first", err)
	}
}

func TestRecoverTo(t *testing.T) {
	var got error
	func() {
		defer recoverTo(logger.NewNopLogger(), "pack a", func(err error) { got = err })
		panic("kaboom")
	}()

	if got == nil {
		t.Fatal("expected the panic to be converted")
	}
	if !strings.Contains(got.Error(), "pack a panicked: kaboom") {
		t.Errorf("unexpected error: %v", got)
	}
}
