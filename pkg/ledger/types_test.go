package ledger

import (
	"errors"
	"testing"
)

func TestNewTenantID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		wantErr error
		wantVal string
	}{
		{name: "valid", input: " tenant-9 ", wantVal: "tenant-9"},
		{name: "empty", input: "   ", wantErr: ErrInvalidTenantID},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := NewTenantID(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.String() != tc.wantVal {
				t.Fatalf("expected %q, got %q", tc.wantVal, result.String())
			}
		})
	}
}

func TestNewOwnerType(t *testing.T) {
	t.Parallel()
	_, err := NewOwnerType("")
	if !errors.Is(err, ErrInvalidOwnerType) {
		t.Fatalf("expected ErrInvalidOwnerType, got %v", err)
	}
	ownerType, err := NewOwnerType("gift_card")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ownerType.String() != "gift_card" {
		t.Fatalf("expected gift_card, got %q", ownerType.String())
	}
}

func TestNewOwnerID(t *testing.T) {
	t.Parallel()
	_, err := NewOwnerID("   ")
	if !errors.Is(err, ErrInvalidOwnerID) {
		t.Fatalf("expected ErrInvalidOwnerID, got %v", err)
	}
}

func TestNewAccountKey(t *testing.T) {
	t.Parallel()
	tenantID := mustTenantID(t, "tenant-1")
	ownerType := mustOwnerType(t, "gift_card")
	ownerID := mustOwnerID(t, "card-42")

	key, err := NewAccountKey(tenantID, ownerType, ownerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.String() != "tenant-1/gift_card/card-42" {
		t.Fatalf("unexpected key rendering: %q", key.String())
	}

	_, err = NewAccountKey(TenantID{}, ownerType, ownerID)
	if !errors.Is(err, ErrInvalidAccountKey) {
		t.Fatalf("expected ErrInvalidAccountKey, got %v", err)
	}
}

func TestNewTransactionType(t *testing.T) {
	t.Parallel()
	_, err := NewTransactionType("")
	if !errors.Is(err, ErrInvalidTransactionType) {
		t.Fatalf("expected ErrInvalidTransactionType, got %v", err)
	}
}

func TestNewMetadataNeverNil(t *testing.T) {
	t.Parallel()
	metadata := NewMetadata(nil)
	if metadata == nil {
		t.Fatalf("expected non-nil metadata map")
	}
	if len(metadata) != 0 {
		t.Fatalf("expected empty metadata map, got %v", metadata)
	}
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	t.Parallel()
	original := NewMetadata(map[string]string{"source": "register-3"})
	clone := original.Clone()
	clone["source"] = "register-4"
	if original["source"] != "register-3" {
		t.Fatalf("clone mutation leaked into original: %v", original)
	}
}
