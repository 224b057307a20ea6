package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

const (
	uploadPath = "/api/transcribe/upload/"

	maxUploadAttempts = 3
	baseRetryDelay    = time.Second
)

// Client talks to the remote transcription provider. Every call carries
// the static bearer credential; base URL and token are both required.
type Client struct {
	baseURL string
	http    *http.Client
	sleep   func(time.Duration)
}

// New creates a provider client authenticated with a static bearer token.
func New(baseURL, authToken string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	if strings.TrimSpace(authToken) == "" {
		return nil, fmt.Errorf("provider auth token is required")
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: authToken,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		sleep:   time.Sleep,
	}, nil
}

// ResultKind discriminates how the provider answered an upload.
type ResultKind string

const (
	// ResultQueued means the provider assigned a job id to poll later.
	ResultQueued ResultKind = "queued"
	// ResultDirect means the provider answered with an inline transcript.
	ResultDirect ResultKind = "direct"
)

// UploadRequest carries one normalized audio payload to the provider.
type UploadRequest struct {
	Payload      []byte
	ContentType  string
	Filename     string
	LanguageCode string
	OnProgress   func(percent int)
}

// UploadResult is the discriminated outcome of a successful upload.
type UploadResult struct {
	Kind ResultKind
	ID   string
	Text string
}

// Upload transmits the payload as a multipart form. HTTP 429 is retried
// up to three attempts honoring a Retry-After hint when present, with
// exponential backoff from a one-second base otherwise. 400 and 5xx
// fail immediately with ValidationError and ServerError respectively.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	body, contentType, err := buildMultipart(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}

	for attempt := 0; attempt < maxUploadAttempts; attempt++ {
		result, retry, err := c.uploadOnce(ctx, body, contentType, req.OnProgress)
		if err == nil {
			return result, nil
		}
		if !retry {
			return UploadResult{}, err
		}

		delay := retryDelay(err, attempt)
		if attempt == maxUploadAttempts-1 {
			break
		}
		log.Printf("Upload rate limited, waiting %s before attempt %d/%d", delay, attempt+2, maxUploadAttempts)
		c.sleep(delay)
	}

	return UploadResult{}, &types.RateLimitError{Attempts: maxUploadAttempts}
}

// rateLimited is an internal marker carrying the server retry hint.
type rateLimited struct {
	hint time.Duration
}

func (e *rateLimited) Error() string { return "rate limited" }

func (c *Client) uploadOnce(ctx context.Context, body []byte, contentType string, onProgress func(int)) (UploadResult, bool, error) {
	reader := newProgressReader(body, onProgress)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, reader)
	if err != nil {
		return UploadResult{}, false, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.ContentLength = int64(len(body))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return UploadResult{}, false, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return UploadResult{}, true, &rateLimited{hint: retryAfterHint(resp)}

	case resp.StatusCode == http.StatusBadRequest:
		msg := decodeErrorMessage(resp.Body)
		if msg == "" {
			msg = "invalid request: ensure the audio file is a supported format under 5MB"
		}
		return UploadResult{}, false, &types.ValidationError{Message: msg}

	case resp.StatusCode >= http.StatusInternalServerError:
		return UploadResult{}, false, &types.ServerError{
			StatusCode: resp.StatusCode,
			Message:    decodeErrorMessage(resp.Body),
		}

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return decodeUploadResponse(resp.Body)
	}

	return UploadResult{}, false, &types.ProtocolError{
		Message: fmt.Sprintf("unexpected upload status %d", resp.StatusCode),
	}
}

// decodeUploadResponse maps the provider's loose response shape onto the
// discriminated result. Ambiguous bodies fail with ProtocolError.
func decodeUploadResponse(r io.Reader) (UploadResult, bool, error) {
	var body struct {
		ID              flexID  `json:"id"`
		TranscriptionID flexID  `json:"transcription_id"`
		Text            *string `json:"text"`
		Error           string  `json:"error"`
		Location        string  `json:"location"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return UploadResult{}, false, &types.ProtocolError{
			Message: fmt.Sprintf("undecodable upload response: %v", err),
		}
	}

	if body.Error != "" {
		return UploadResult{}, false, &types.ServerError{Message: body.Error}
	}
	if id := firstNonEmpty(string(body.ID), string(body.TranscriptionID)); id != "" {
		return UploadResult{Kind: ResultQueued, ID: id}, false, nil
	}
	if body.Text != nil && strings.TrimSpace(*body.Text) != "" {
		return UploadResult{Kind: ResultDirect, Text: *body.Text}, false, nil
	}
	if id := idFromLocation(body.Location); id != "" {
		return UploadResult{Kind: ResultQueued, ID: id}, false, nil
	}

	return UploadResult{}, false, &types.ProtocolError{
		Message: "upload response carries no job id, text, or id-bearing URL",
	}
}

// buildMultipart assembles the upload form once; retries resend the same
// bytes. The filename carries a format-appropriate extension.
func buildMultipart(req UploadRequest) ([]byte, string, error) {
	filename := req.Filename
	if filename == "" {
		filename = "recording.wav"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Payload); err != nil {
		return nil, "", err
	}
	if req.LanguageCode != "" {
		if err := w.WriteField("language_code", req.LanguageCode); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// retryDelay prefers the server hint from the failed attempt.
func retryDelay(err error, attempt int) time.Duration {
	if rl, ok := err.(*rateLimited); ok && rl.hint > 0 {
		return rl.hint
	}
	return baseRetryDelay << attempt
}

// retryAfterHint reads an integer-seconds Retry-After header.
func retryAfterHint(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// decodeErrorMessage extracts {"error": ...} from an error body.
func decodeErrorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return ""
	}
	return body.Error
}

// idFromLocation pulls the trailing path segment from an id-bearing URL.
func idFromLocation(location string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(location), "/")
	if trimmed == "" {
		return ""
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// flexID accepts both string and numeric ids from the provider.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// progressReader reports whole-percent transmission progress as the
// request body is consumed. It reaches 100 only when every byte has
// been read by the transport.
type progressReader struct {
	r        *bytes.Reader
	total    int
	read     int
	lastPct  int
	onChange func(int)
}

func newProgressReader(body []byte, onChange func(int)) *progressReader {
	return &progressReader{
		r:        bytes.NewReader(body),
		total:    len(body),
		lastPct:  -1,
		onChange: onChange,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += n
	if p.onChange != nil && p.total > 0 {
		pct := p.read * 100 / p.total
		if pct != p.lastPct {
			p.lastPct = pct
			p.onChange(pct)
		}
	}
	return n, err
}
