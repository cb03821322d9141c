package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	wavHeaderSize   = 44
	wavFmtChunkSize = 16
	wavFormatPCM    = 1
)

// ErrNotWAV is returned when a file does not carry a PCM RIFF/WAVE header
var ErrNotWAV = errors.New("not a PCM WAV file")

// Format describes a PCM stream layout
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultCaptureFormat is the layout used for recorded answers
var DefaultCaptureFormat = Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

// ByteRate returns bytes per second for the format
func (f Format) ByteRate() int {
	return BytesPerSecond(f.SampleRate, f.Channels, f.BitDepth)
}

// Duration returns the playback duration of n PCM bytes
func (f Format) Duration(n int64) time.Duration {
	rate := f.ByteRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// EncodeWAVHeader builds a 44-byte PCM WAV header for dataSize bytes of audio
func EncodeWAVHeader(f Format, dataSize int) []byte {
	blockAlign := f.Channels * f.BitDepth / 8

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], wavFmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(f.BitDepth))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	return header
}

// DecodeWAVHeader reads the canonical 44-byte header and returns the format
// and declared data size.
func DecodeWAVHeader(r io.Reader) (Format, int, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Format{}, 0, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" ||
		string(header[12:16]) != "fmt " || string(header[36:40]) != "data" {
		return Format{}, 0, ErrNotWAV
	}
	if binary.LittleEndian.Uint16(header[20:22]) != wavFormatPCM {
		return Format{}, 0, ErrNotWAV
	}

	f := Format{
		Channels:   int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(header[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(header[34:36])),
	}
	return f, int(binary.LittleEndian.Uint32(header[40:44])), nil
}

// WAVWriter streams PCM into a WAV file, patching the header sizes on Close
type WAVWriter struct {
	file    *os.File
	format  Format
	written int64
	closed  bool
}

// NewWAVWriter writes a placeholder header to f and returns a writer for PCM
func NewWAVWriter(f *os.File, format Format) (*WAVWriter, error) {
	if _, err := f.Write(EncodeWAVHeader(format, 0)); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	return &WAVWriter{file: f, format: format}, nil
}

// Write appends PCM bytes
func (w *WAVWriter) Write(pcm []byte) (int, error) {
	n, err := w.file.Write(pcm)
	w.written += int64(n)
	return n, err
}

// DataSize returns the PCM bytes written so far
func (w *WAVWriter) DataSize() int64 {
	return w.written
}

// Duration returns the audio duration written so far
func (w *WAVWriter) Duration() time.Duration {
	return w.format.Duration(w.written)
}

// Close finalizes the header and closes the file. Safe to call twice.
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.file.WriteAt(EncodeWAVHeader(w.format, int(w.written)), 0); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize WAV header: %w", err)
	}
	return w.file.Close()
}
