// Package wav implements the 44-byte PCM WAV container used on the
// wire, both the open-ended streaming variant (size fields set to the
// unknown-length sentinel) and the finalized variant written once the
// sample count is known.
package wav

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// HeaderSize is the fixed container header length in bytes.
	HeaderSize = 44

	// SizeUnknown is the sentinel written into the RIFF size field of a
	// streaming header, where the final length cannot be predicted.
	SizeUnknown = 0xFFFFFFFF

	// SampleRateOffset is the byte offset of the sample rate field.
	SampleRateOffset = 24

	riffChunkOverhead = 36 // header bytes counted by the RIFF size field
)

// StreamHeader builds a header for a stream of unknown total length.
// The RIFF and data size fields carry the maximum representable value
// so that consumers treat the payload as open-ended.
func StreamHeader(sampleRate, numChannels, bitsPerSample int) []byte {
	return header(SizeUnknown, SizeUnknown-riffChunkOverhead, sampleRate, numChannels, bitsPerSample)
}

// FileHeader builds a length-correct header for dataSize bytes of PCM.
func FileHeader(dataSize, sampleRate, numChannels, bitsPerSample int) []byte {
	return header(uint32(dataSize+riffChunkOverhead), uint32(dataSize), sampleRate, numChannels, bitsPerSample)
}

func header(riffSize, dataSize uint32, sampleRate, numChannels, bitsPerSample int) []byte {
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	h := make([]byte, HeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], riffSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // fmt subchunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], uint16(bitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

// ParseHeader validates the container magic of a fully buffered header
// and extracts the sample rate. It does not check the size fields,
// which are sentinels on streamed audio.
func ParseHeader(h []byte) (sampleRate int, err error) {
	if len(h) < HeaderSize {
		return 0, fmt.Errorf("header too short: %d bytes", len(h))
	}
	if string(h[0:4]) != "RIFF" {
		return 0, fmt.Errorf("bad RIFF magic %q", h[0:4])
	}
	if string(h[8:12]) != "WAVE" {
		return 0, fmt.Errorf("bad WAVE magic %q", h[8:12])
	}
	if string(h[12:16]) != "fmt " {
		return 0, fmt.Errorf("bad fmt subchunk magic %q", h[12:16])
	}
	return int(binary.LittleEndian.Uint32(h[SampleRateOffset : SampleRateOffset+4])), nil
}

// FloatToPCM converts float samples in [-1.0, 1.0] to 16-bit signed
// integers, clamped to [-32768, 32767] so that exactly 1.0 maps to
// 32767 rather than overflowing and -1.0 maps to -32768.
func FloatToPCM(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// PCMToFloat converts 16-bit samples to floats via s/32768.
func PCMToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// PCMToBytes converts int16 samples to little-endian bytes.
func PCMToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToPCM converts little-endian bytes to int16 samples. A trailing
// odd byte is dropped.
func BytesToPCM(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return samples
}

// Encode wraps PCM samples in a complete, length-correct mono WAV file.
func Encode(samples []int16, sampleRate int) []byte {
	data := PCMToBytes(samples)
	out := make([]byte, 0, HeaderSize+len(data))
	out = append(out, FileHeader(len(data), sampleRate, 1, 16)...)
	return append(out, data...)
}
