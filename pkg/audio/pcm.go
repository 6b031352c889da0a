// Package audio describes the raw PCM format accepted from clients.
package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// 输入采样率
	IngressSampleRate = 16000
	// 通道数
	IngressChannels = 1
	// 每个采样点的字节数 (16-bit)
	BytesPerSample = 2
)

var (
	ErrEmptyFrame      = errors.New("audio frame is empty")
	ErrMisalignedFrame = errors.New("audio frame is not sample aligned")
)

// Format is a linear PCM layout. Samples are signed little-endian.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Ingress is the only layout accepted on audio:chunk: 16-bit mono 16 kHz.
var Ingress = Format{
	SampleRate:    IngressSampleRate,
	Channels:      IngressChannels,
	BitsPerSample: BytesPerSample * 8,
}

// Encoding returns the name vendors use for this layout.
func (f Format) Encoding() string {
	if f.BitsPerSample == 16 {
		return "linear16"
	}
	return fmt.Sprintf("pcm_s%dle", f.BitsPerSample)
}

// BlockAlign returns the size in bytes of one sample across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.BlockAlign()
}

// Validate rejects frames that cannot be split into whole samples.
func (f Format) Validate(frame []byte) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}
	if align := f.BlockAlign(); align > 0 && len(frame)%align != 0 {
		return fmt.Errorf("%w: %d bytes, block align %d", ErrMisalignedFrame, len(frame), align)
	}
	return nil
}

// Duration returns the playback time of n bytes.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}
