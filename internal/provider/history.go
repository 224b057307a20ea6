package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

const historyPath = "/api/transcribe/"

// Snapshot is one server-authoritative view of the job history.
type Snapshot struct {
	Partition   types.Partition
	Counts      types.StatusCounts
	CurrentPage int
	TotalPages  int
}

// History retrieves the full status-partitioned job listing. A page of
// zero and an empty or "all" status request the unfiltered listing.
// Every failure is wrapped in HistoryFetchError so callers know to keep
// their previous snapshot.
func (c *Client) History(ctx context.Context, page int, status string) (*Snapshot, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if status != "" && status != "all" {
		params.Set("status", status)
	}

	endpoint := c.baseURL + historyPath
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &types.HistoryFetchError{Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &types.HistoryFetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &types.HistoryFetchError{
			Err: fmt.Errorf("history request returned status %d", resp.StatusCode),
		}
	}

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &types.HistoryFetchError{Err: fmt.Errorf("decode history response: %w", err)}
	}

	return &Snapshot{
		Partition: types.Partition{
			Queued:     toJobs(body.Transcriptions.Queued),
			Processing: toJobs(body.Transcriptions.Processing),
			Completed:  toJobs(body.Transcriptions.Completed),
			Error:      toJobs(body.Transcriptions.Error),
		},
		Counts:      body.StatusCounts,
		CurrentPage: body.CurrentPage,
		TotalPages:  body.TotalPages,
	}, nil
}

// Delete removes a job from the provider's history.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("transcription id is required")
	}

	endpoint := c.baseURL + historyPath + url.PathEscape(id) + "/"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &types.ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("delete transcription %s returned status %d", id, resp.StatusCode),
		}
	}
	return nil
}

type historyResponse struct {
	Transcriptions struct {
		Queued     []wireJob `json:"queued"`
		Processing []wireJob `json:"processing"`
		Completed  []wireJob `json:"completed"`
		Error      []wireJob `json:"error"`
	} `json:"transcriptions"`
	StatusCounts types.StatusCounts `json:"status_counts"`
	CurrentPage  int                `json:"current_page"`
	TotalPages   int                `json:"total_pages"`
}

type wireJob struct {
	ID           flexID  `json:"id"`
	Text         *string `json:"text"`
	AudioURL     string  `json:"audio_url"`
	LanguageCode string  `json:"language_code"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  *string `json:"completed_at"`
	Error        *string `json:"error"`
	Status       string  `json:"status"`
}

func toJobs(wire []wireJob) []types.Job {
	if len(wire) == 0 {
		return nil
	}
	jobs := make([]types.Job, 0, len(wire))
	for _, w := range wire {
		jobs = append(jobs, toJob(w))
	}
	return jobs
}

// toJob converts the wire shape; the canonical status is left unset and
// is filled in by the reconciler on snapshot adoption.
func toJob(w wireJob) types.Job {
	job := types.Job{
		ID:           string(w.ID),
		AudioRef:     w.AudioURL,
		LanguageCode: w.LanguageCode,
		CreatedAt:    parseWireTime(w.CreatedAt),
		ServerStatus: types.Status(strings.ToLower(strings.TrimSpace(w.Status))),
	}
	if w.Text != nil {
		job.RawText = *w.Text
	}
	if w.Error != nil {
		job.RawError = *w.Error
	}
	if w.CompletedAt != nil {
		if t := parseWireTime(*w.CompletedAt); !t.IsZero() {
			job.CompletedAt = &t
		}
	}
	return job
}

// parseWireTime accepts the timestamp shapes the provider is known to
// emit; unparseable values come back zero rather than failing the fetch.
func parseWireTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
