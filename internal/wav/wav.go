// Package wav writes the canonical RIFF/WAVE container the decoder
// pipeline emits one per call: 16-bit PCM, mono, 8000 Hz.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	sampleRate    = 8000
	channels      = 1
	bitsPerSample = 16
)

// header is the on-disk layout of a canonical PCM WAV file, written
// little-endian exactly as laid out below.
type header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Writer emits 16-bit/8kHz/mono PCM to a single file, reserving the
// RIFF and data chunk-size fields until Close patches them with the
// finalized lengths. A Writer is single-writer; concurrent writes to
// one underlying file are undefined, matching the one-worker-per-call
// ownership the decoder pipeline gives it.
type Writer struct {
	file     *os.File
	dataSize int64
	closed   bool
}

// Create opens path, truncating any existing file, and writes a
// placeholder header that Close will patch.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav: create %s: %w", path, err)
	}
	w := &Writer{file: f}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(dataSize int64) error {
	h := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(dataSize + 36),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * channels * bitsPerSample / 8,
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}
	if err := binary.Write(w.file, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	return nil
}

// WriteSamples appends PCM samples, little-endian int16 each.
func (w *Writer) WriteSamples(samples []int16) error {
	for _, s := range samples {
		if err := binary.Write(w.file, binary.LittleEndian, s); err != nil {
			return fmt.Errorf("wav: write sample: %w", err)
		}
	}
	w.dataSize += int64(len(samples)) * (bitsPerSample / 8)
	return nil
}

// DataSize reports the number of PCM bytes written so far.
func (w *Writer) DataSize() int64 { return w.dataSize }

// DurationSeconds reports the duration implied by DataSize at the
// fixed 8kHz/mono/16-bit rate this package writes.
func (w *Writer) DurationSeconds() float64 {
	samples := w.dataSize / (bitsPerSample / 8)
	return float64(samples) / float64(sampleRate)
}

// Close seeks back to the start, patches the RIFF and data chunk-size
// fields with the finalized length, and closes the underlying file.
// Close is idempotent; calling it twice is a no-op after the first
// call succeeds.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return fmt.Errorf("wav: seek to patch header: %w", err)
	}
	if err := w.writeHeader(w.dataSize); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
