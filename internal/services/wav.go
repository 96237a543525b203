package services

import (
	"encoding/binary"
	"fmt"
	"io"
)

// writeWAV writes little-endian PCM samples with a canonical 44-byte RIFF header
func writeWAV(w io.Writer, pcm []byte, sampleRate, channels, bitsPerSample int) error {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataLen := uint32(len(pcm))

	header := []interface{}{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36) + dataLen,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataLen,
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write wav header: %w", err)
		}
	}

	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}
