package limits

import (
	"errors"
	"testing"
)

// TestMaxPacketFitsMinimumMTU verifies that an encoded packet with the largest
// payload still fits a minimum-MTU IPv6 link
func TestMaxPacketFitsMinimumMTU(t *testing.T) {
	if MaxPacket != MinLinkMTU {
		t.Errorf("MaxPacket = %d, want %d", MaxPacket, MinLinkMTU)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"empty", 0, ErrPayloadEmpty},
		{"one byte", 1, nil},
		{"at limit", MaxPayload, nil},
		{"over limit", MaxPayload + 1, ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(make([]byte, tt.size))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePayload(%d bytes) = %v, want %v", tt.size, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePayloadSizeAllowsEmpty(t *testing.T) {
	if err := ValidatePayloadSize(nil); err != nil {
		t.Errorf("ValidatePayloadSize(nil) = %v, want nil", err)
	}
	if err := ValidatePayloadSize(make([]byte, MaxPayload+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("ValidatePayloadSize(too large) = %v, want %v", err, ErrPayloadTooLarge)
	}
}
