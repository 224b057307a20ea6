package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// The provider only accepts linear PCM in a RIFF/WAVE container. The
// 44-byte header layout below is a wire contract: format tag 1 (PCM),
// 16-bit signed little-endian samples, byte-aligned data length.
const (
	wavHeaderSize  = 44
	wavFormatPCM   = 1
	wavBitsPerByte = 8
	wavSampleBytes = 2 // 16-bit samples
)

// EncodeWAV serializes 16-bit PCM samples into a self-describing WAVE
// container. The output is byte-exact for identical input.
func EncodeWAV(samples []int16, channels, sampleRate int) []byte {
	dataLen := len(samples) * wavSampleBytes
	buf := make([]byte, wavHeaderSize+dataLen)

	blockAlign := channels * wavSampleBytes
	byteRate := sampleRate * blockAlign

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], wavSampleBytes*wavBitsPerByte)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	offset := wavHeaderSize
	for _, s := range samples {
		binary.LittleEndian.PutUint16(buf[offset:offset+2], uint16(s))
		offset += 2
	}
	return buf
}

// DecodeWAV parses a PCM WAVE container back into samples. Only the
// canonical 16-bit PCM layout produced by EncodeWAV is accepted; other
// containers go through the ffmpeg decode path instead.
func DecodeWAV(data []byte) (samples []int16, channels, sampleRate int, err error) {
	if len(data) < wavHeaderSize {
		return nil, 0, 0, &types.DecodeError{Message: "wav data shorter than header"}
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, &types.DecodeError{Message: "missing RIFF/WAVE markers"}
	}
	if string(data[12:16]) != "fmt " {
		return nil, 0, 0, &types.DecodeError{Message: "missing fmt chunk"}
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	if format != wavFormatPCM {
		return nil, 0, 0, &types.DecodeError{Message: fmt.Sprintf("unsupported wav format tag %d", format)}
	}
	bits := binary.LittleEndian.Uint16(data[34:36])
	if bits != wavSampleBytes*wavBitsPerByte {
		return nil, 0, 0, &types.DecodeError{Message: fmt.Sprintf("unsupported bit depth %d", bits)}
	}

	channels = int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	if channels <= 0 || sampleRate <= 0 {
		return nil, 0, 0, &types.DecodeError{Message: "invalid channel count or sample rate"}
	}

	if string(data[36:40]) != "data" {
		return nil, 0, 0, &types.DecodeError{Message: "missing data chunk"}
	}
	dataLen := int(binary.LittleEndian.Uint32(data[40:44]))
	if dataLen > len(data)-wavHeaderSize {
		return nil, 0, 0, &types.DecodeError{Message: "data chunk length exceeds payload"}
	}

	samples = make([]int16, dataLen/wavSampleBytes)
	for i := range samples {
		off := wavHeaderSize + i*wavSampleBytes
		samples[i] = int16(binary.LittleEndian.Uint16(data[off : off+2]))
	}
	return samples, channels, sampleRate, nil
}

// pcmBytesToSamples reinterprets raw little-endian 16-bit PCM bytes.
// A trailing odd byte is dropped.
func pcmBytesToSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/wavSampleBytes)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return samples
}
