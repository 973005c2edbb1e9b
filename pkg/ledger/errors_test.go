package ledger

import (
	"errors"
	"testing"
)

func TestWrapErrorNilPassthrough(t *testing.T) {
	t.Parallel()
	if err := WrapError("credit", "account", "save", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorSegments(t *testing.T) {
	t.Parallel()
	wrapped := WrapError("debit", "account", "lookup", ErrAccountNotInitialized)

	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		t.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Operation() != "debit" {
		t.Fatalf("unexpected operation segment: %q", operationError.Operation())
	}
	if operationError.Subject() != "account" {
		t.Fatalf("unexpected subject segment: %q", operationError.Subject())
	}
	if operationError.Code() != "lookup" {
		t.Fatalf("unexpected code segment: %q", operationError.Code())
	}
	if wrapped.Error() != "debit.account.lookup: account not initialized" {
		t.Fatalf("unexpected message: %q", wrapped.Error())
	}
}

func TestOperationErrorUnwrap(t *testing.T) {
	t.Parallel()
	wrapped := WrapError("adjust_to", "account", "save", ErrNegativeAdjustmentTarget)
	if !errors.Is(wrapped, ErrNegativeAdjustmentTarget) {
		t.Fatalf("expected wrapped sentinel to survive errors.Is, got %v", wrapped)
	}
}
