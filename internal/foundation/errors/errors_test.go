package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "pacgen.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "pacgen.yaml" {
			t.Errorf("expected context file=pacgen.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if !HasSeverity(err, SeverityFatal) {
			t.Error("expected error to have fatal severity")
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := ContractError("form produced no output").Build()
		wrapped := fmt.Errorf("pipeline: %w", inner)

		if !HasCategory(wrapped, CategoryContract) {
			t.Error("expected wrapped error to keep its category")
		}
		if GetCategory(wrapped) != CategoryContract {
			t.Errorf("expected %s, got %s", CategoryContract, GetCategory(wrapped))
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("expected unclassified error to map to internal")
		}
	})

	t.Run("State corruption is not fatal", func(t *testing.T) {
		err := StateCorruptionError("bad state").Build()
		if err.IsFatal() {
			t.Error("state corruption must not be fatal")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := errors.New("exit status 1")
	err := WrapError(originalErr, CategoryTool, "rustfmt failed").
		Fatal().
		WithContext("stage", "format").
		WithContextMap(ErrorContext{"tool": "rustfmt"}).
		Build()

	if !errors.Is(err, originalErr) {
		t.Error("expected error to wrap original error")
	}
	if err.Cause() != originalErr {
		t.Error("expected cause to be original error")
	}
	if got := err.Detail(); got != "rustfmt failed (stage=format tool=rustfmt)" {
		t.Errorf("unexpected detail: %q", got)
	}
	if got := err.Error(); got != "[tool:fatal] rustfmt failed: exit status 1" {
		t.Errorf("unexpected error string: %q", got)
	}
}

func TestClassifiedErrorWithContextDoesNotMutate(t *testing.T) {
	base := ToolError("svd2rust failed").Build()
	derived := base.WithContext("tool", "svd2rust")

	if _, ok := base.Context().Get("tool"); ok {
		t.Error("WithContext must not mutate the receiver")
	}
	if v, _ := derived.Context().GetString("tool"); v != "svd2rust" {
		t.Errorf("expected derived tool context, got %q", v)
	}
}

func TestErrorsIsMatchesCategoryAndMessage(t *testing.T) {
	a := InputNotFoundError("svd input missing").WithContext("path", "/a").Build()
	b := InputNotFoundError("svd input missing").Build()
	c := InputNotFoundError("other").Build()

	if !errors.Is(a, b) {
		t.Error("expected errors with same category and message to match")
	}
	if errors.Is(a, c) {
		t.Error("expected different messages not to match")
	}
}
