package limits

import (
	"errors"
	"strings"
	"testing"
)

// TestChunkFitsInFrame verifies that a default-sized WriteFile frame fits the link MTU
func TestChunkFitsInFrame(t *testing.T) {
	if DefaultChunkSize > MaxChunkSize {
		t.Errorf("DefaultChunkSize = %d, exceeds MaxChunkSize %d", DefaultChunkSize, MaxChunkSize)
	}
	if MaxChunkSize+frameOverhead != MaxFrameSize {
		t.Errorf("MaxChunkSize (%d) + overhead (%d) != MaxFrameSize (%d)", MaxChunkSize, frameOverhead, MaxFrameSize)
	}
}

// TestValidateChunkSize tests the chunk size validation function
func TestValidateChunkSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{name: "zero", size: 0, wantErr: ErrEmpty},
		{name: "negative", size: -1, wantErr: ErrEmpty},
		{name: "default", size: DefaultChunkSize, wantErr: nil},
		{name: "max", size: MaxChunkSize, wantErr: nil},
		{name: "too large", size: MaxChunkSize + 1, wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunkSize(tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunkSize(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
		})
	}
}

// TestValidateFrame tests frame validation
func TestValidateFrame(t *testing.T) {
	if err := ValidateFrame(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("ValidateFrame(nil) = %v, want ErrEmpty", err)
	}
	if err := ValidateFrame(make([]byte, MaxFrameSize)); err != nil {
		t.Errorf("ValidateFrame(max) = %v, want nil", err)
	}
	if err := ValidateFrame(make([]byte, MaxFrameSize+1)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("ValidateFrame(max+1) = %v, want ErrTooLarge", err)
	}
}

// TestValidatePath tests remote path validation
func TestValidatePath(t *testing.T) {
	if err := ValidatePath(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("ValidatePath(\"\") = %v, want ErrEmpty", err)
	}
	if err := ValidatePath("E:/music"); err != nil {
		t.Errorf("ValidatePath = %v, want nil", err)
	}
	err := ValidatePath(strings.Repeat("a", MaxPathLength+1))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("ValidatePath(long) = %v, want ErrTooLarge", err)
	}
	if !strings.Contains(err.Error(), "path size") {
		t.Errorf("error %q lacks context", err)
	}
}

// TestValidateResponseSize tests the reassembly bound
func TestValidateResponseSize(t *testing.T) {
	if err := ValidateResponseSize(MaxResponsePayload); err != nil {
		t.Errorf("ValidateResponseSize(max) = %v", err)
	}
	if err := ValidateResponseSize(MaxResponsePayload + 1); !errors.Is(err, ErrTooLarge) {
		t.Errorf("ValidateResponseSize(max+1) = %v, want ErrTooLarge", err)
	}
}
