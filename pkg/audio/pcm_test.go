package audio

import (
	"errors"
	"testing"
	"time"
)

func TestIngressFormat(t *testing.T) {
	if Ingress.BlockAlign() != 2 {
		t.Errorf("BlockAlign() = %d, want 2", Ingress.BlockAlign())
	}
	if Ingress.BytesPerSecond() != 32000 {
		t.Errorf("BytesPerSecond() = %d, want 32000", Ingress.BytesPerSecond())
	}
	if Ingress.Encoding() != "linear16" {
		t.Errorf("Encoding() = %q, want linear16", Ingress.Encoding())
	}
}

func TestFormat_Duration(t *testing.T) {
	tests := []struct {
		bytes int
		want  time.Duration
	}{
		{0, 0},
		{640, 20 * time.Millisecond},
		{3200, 100 * time.Millisecond},
		{32000, time.Second},
	}
	for _, tt := range tests {
		if got := Ingress.Duration(tt.bytes); got != tt.want {
			t.Errorf("Duration(%d) = %v, want %v", tt.bytes, got, tt.want)
		}
	}

	if got := (Format{}).Duration(100); got != 0 {
		t.Errorf("zero format Duration = %v, want 0", got)
	}
}

func TestFormat_Validate(t *testing.T) {
	if err := Ingress.Validate(make([]byte, 640)); err != nil {
		t.Errorf("Validate(640 bytes) = %v, want nil", err)
	}
	if err := Ingress.Validate(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Validate(nil) = %v, want ErrEmptyFrame", err)
	}
	if err := Ingress.Validate(make([]byte, 641)); !errors.Is(err, ErrMisalignedFrame) {
		t.Errorf("Validate(641 bytes) = %v, want ErrMisalignedFrame", err)
	}
}
