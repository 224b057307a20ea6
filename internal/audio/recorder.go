package audio

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// Recorder accumulates raw PCM chunks from a live capture stream and
// finalizes them into a canonical waveform clip. The capture device
// itself lives on the browser side; the recorder owns the buffered
// stream and must be released on every exit path.
type Recorder struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	chunks     [][]byte
	total      int
	active     bool
}

// NewRecorder creates a recorder for the canonical capture format.
func NewRecorder() *Recorder {
	return &Recorder{
		sampleRate: DefaultSampleRate,
		channels:   DefaultChannels,
	}
}

// Start begins a capture session, discarding any previous buffers.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = nil
	r.total = 0
	r.active = true
}

// Write appends one PCM chunk to the capture buffer.
func (r *Recorder) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return &types.PermissionError{Message: "capture session is not active"}
	}
	if len(chunk) == 0 {
		return nil
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.chunks = append(r.chunks, buf)
	r.total += len(buf)
	return nil
}

// Elapsed returns the duration captured so far.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	frames := r.total / (wavSampleBytes * r.channels)
	if r.sampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(r.sampleRate)
}

// Stop finalizes the capture into a clip and releases the buffers.
// An empty capture or a clip exceeding the payload cap fails with
// ValidationError.
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	chunks := r.chunks
	total := r.total
	r.chunks = nil
	r.total = 0
	r.active = false
	r.mu.Unlock()

	if total == 0 {
		return nil, &types.ValidationError{Message: "no audio was captured"}
	}

	raw := make([]byte, 0, total)
	for _, chunk := range chunks {
		raw = append(raw, chunk...)
	}

	encoded := EncodeWAV(pcmBytesToSamples(raw), r.channels, r.sampleRate)
	if len(encoded) > MaxPayloadBytes {
		return nil, &types.ValidationError{
			Message: "recording exceeds the 5MB limit after conversion, use a shorter recording",
		}
	}

	return &Clip{Data: encoded, Channels: r.channels, SampleRate: r.sampleRate}, nil
}

// Abort releases the capture buffers without producing a clip. Safe to
// call on any exit path, including after Stop.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = nil
	r.total = 0
	r.active = false
}
