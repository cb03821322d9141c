package audio

import (
	"bytes"
	"math"
	"testing"
)

func TestResample(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = int16(i * 100)
	}

	// Resample from 8kHz to 16kHz (should double)
	if got := len(Resample(samples, 8000, 16000)); got != 200 {
		t.Errorf("Expected resampled length 200, got %d", got)
	}

	// Resample from 16kHz to 8kHz (should halve)
	if got := len(Resample(samples, 16000, 8000)); got != 50 {
		t.Errorf("Expected resampled length 50, got %d", got)
	}

	// Same rate should return unchanged
	if got := len(Resample(samples, 8000, 8000)); got != len(samples) {
		t.Errorf("Expected unchanged length %d, got %d", len(samples), got)
	}
}

func TestResamplePCM(t *testing.T) {
	pcm := SamplesToBytes(make([]int16, 2400)) // 0.1s at 24kHz

	out, err := ResamplePCM(pcm, 24000, 16000)
	if err != nil {
		t.Fatalf("ResamplePCM failed: %v", err)
	}
	if len(out) != 1600*2 {
		t.Errorf("Expected %d bytes, got %d", 1600*2, len(out))
	}

	if _, err := ResamplePCM([]byte{1, 2, 3}, 24000, 16000); err == nil {
		t.Error("Expected error for odd-length PCM")
	}
	if _, err := ResamplePCM(pcm, 0, 16000); err == nil {
		t.Error("Expected error for zero input rate")
	}
}

func TestBytesToSamples(t *testing.T) {
	samples := BytesToSamples([]byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80, 0x01})

	expected := []int16{0, 32767, -32768}
	if len(samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(samples))
	}
	for i, exp := range expected {
		if samples[i] != exp {
			t.Errorf("Expected sample %d at index %d, got %d", exp, i, samples[i])
		}
	}
}

func TestSamplesToBytes(t *testing.T) {
	got := SamplesToBytes([]int16{0, 32767, -32768})

	expected := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestCalculateRMS_Exact(t *testing.T) {
	samples := []int16{1000, -1000, 2000, -2000}
	rms := CalculateRMS(samples)

	expected := math.Sqrt((1000000 + 1000000 + 4000000 + 4000000) / 4.0)
	if math.Abs(rms-expected) > 0.1 {
		t.Errorf("Expected RMS %.2f, got %.2f", expected, rms)
	}
}

func TestCalculateRMS_Empty(t *testing.T) {
	if rms := CalculateRMS([]int16{}); rms != 0.0 {
		t.Errorf("Expected RMS 0.0 for empty slice, got %.2f", rms)
	}
}
