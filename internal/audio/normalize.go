package audio

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// MaxPayloadBytes caps both raw uploads and re-encoded payloads.
const MaxPayloadBytes = 5 * 1024 * 1024

// Canonical waveform parameters for everything sent to the provider.
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 1
)

// allowedMIMETypes lists the accepted compressed/container inputs.
var allowedMIMETypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/x-mp3": true,
	"audio/wav":   true,
	"audio/wave":  true,
	"audio/x-wav": true,
	"audio/aac":   true,
	"audio/ogg":   true,
	"audio/flac":  true,
	"audio/x-m4a": true,
	"audio/mp4":   true,
}

// decodeFunc turns a staged audio file into linear PCM samples.
type decodeFunc func(path string, sampleRate, channels int) ([]int16, error)

// Normalizer converts arbitrary audio input into the canonical
// uncompressed waveform payload.
type Normalizer struct {
	tempDir    string
	sampleRate int
	channels   int
	decode     decodeFunc
}

// NewNormalizer creates a normalizer staging intermediate files in tempDir.
func NewNormalizer(tempDir string) *Normalizer {
	return &Normalizer{
		tempDir:    tempDir,
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
		decode:     ffmpegDecode,
	}
}

// ValidateUpload rejects oversized or unsupported input before any
// decoding or network work happens.
func (n *Normalizer) ValidateUpload(mimeType string, size int64) error {
	if size > MaxPayloadBytes {
		return &types.ValidationError{
			Message: fmt.Sprintf("file size must be less than %dMB", MaxPayloadBytes/(1024*1024)),
		}
	}
	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	if !allowedMIMETypes[strings.ToLower(strings.TrimSpace(base))] {
		return &types.ValidationError{
			Message: "unsupported audio format (use MP3, WAV, AAC, OGG, FLAC or M4A)",
		}
	}
	return nil
}

// Normalize decodes the input to linear PCM and re-encodes it into the
// canonical WAVE container. The result is capped at MaxPayloadBytes;
// exceeding the cap after re-encoding is rejected separately from the
// pre-decode size check.
func (n *Normalizer) Normalize(data []byte, mimeType string) (*Clip, error) {
	if err := n.ValidateUpload(mimeType, int64(len(data))); err != nil {
		return nil, err
	}

	stagedPath := filepath.Join(n.tempDir, fmt.Sprintf("staged_%s%s", uuid.New().String(), extensionFor(mimeType)))
	if err := os.WriteFile(stagedPath, data, 0644); err != nil {
		return nil, fmt.Errorf("stage audio input: %w", err)
	}
	defer func() {
		if err := os.Remove(stagedPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove staged audio %s: %v", stagedPath, err)
		}
	}()

	samples, err := n.decode(stagedPath, n.sampleRate, n.channels)
	if err != nil {
		return nil, err
	}

	encoded := EncodeWAV(samples, n.channels, n.sampleRate)
	if len(encoded) > MaxPayloadBytes {
		return nil, &types.ValidationError{
			Message: "audio exceeds the 5MB limit after conversion, use a shorter recording",
		}
	}

	return &Clip{Data: encoded, Channels: n.channels, SampleRate: n.sampleRate}, nil
}

// ffmpegDecode shells out to ffmpeg to decode any supported container
// into raw signed 16-bit little-endian PCM on stdout.
func ffmpegDecode(path string, sampleRate, channels int) ([]int16, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-v", "error",
		"pipe:1",
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	raw, err := cmd.Output()
	if err != nil {
		return nil, &types.DecodeError{
			Message: fmt.Sprintf("ffmpeg decode failed: %s", strings.TrimSpace(stderr.String())),
			Err:     err,
		}
	}
	if len(raw) < wavSampleBytes {
		return nil, &types.DecodeError{Message: "decoded stream is empty"}
	}

	return pcmBytesToSamples(raw), nil
}

// extensionFor picks a staging file extension ffmpeg can sniff from.
func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	case strings.Contains(mimeType, "aac"):
		return ".aac"
	case strings.Contains(mimeType, "ogg"):
		return ".ogg"
	case strings.Contains(mimeType, "flac"):
		return ".flac"
	case strings.Contains(mimeType, "m4a"), strings.Contains(mimeType, "mp4"):
		return ".m4a"
	default:
		return ".bin"
	}
}
