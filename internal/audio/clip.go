package audio

import "time"

// Clip is a normalized, upload-ready audio payload. Data always holds a
// complete WAVE container produced by EncodeWAV.
type Clip struct {
	Data       []byte
	Channels   int
	SampleRate int
}

// ContentType returns the MIME type declared on upload.
func (c *Clip) ContentType() string { return "audio/wav" }

// Duration derives the playback length from the PCM payload.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 || len(c.Data) <= wavHeaderSize {
		return 0
	}
	frames := (len(c.Data) - wavHeaderSize) / (wavSampleBytes * c.Channels)
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Cursor is a playback position handle for UI scrubbing.
type Cursor struct {
	clip *Clip
	pos  time.Duration
}

// NewCursor creates a cursor at the start of the clip.
func (c *Clip) NewCursor() *Cursor {
	return &Cursor{clip: c}
}

// Position returns the current playback position.
func (cur *Cursor) Position() time.Duration { return cur.pos }

// Seek moves the position, clamped to [0, Duration].
func (cur *Cursor) Seek(to time.Duration) time.Duration {
	if to < 0 {
		to = 0
	}
	if d := cur.clip.Duration(); to > d {
		to = d
	}
	cur.pos = to
	return cur.pos
}
