// Package extract talks to the remote audio extraction service: submit a
// clip job, poll its status, then download the produced file.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/logging"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 60
)

// maxDownloadBytes caps one clip download; larger bodies are rejected whole.
var maxDownloadBytes int64 = 64 << 20

var (
	ErrJobFailed  = errors.New("extraction job failed")
	ErrJobTimeout = errors.New("extraction job did not finish in time")
)

// Job states reported by the service.
const (
	StatusQueued     = "queued"
	StatusRunning    = "running"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusErrored    = "error"
)

type Request struct {
	URL    string  `json:"youtube_url"`
	Start  float64 `json:"start_time"`
	End    float64 `json:"end_time"`
	Format string  `json:"output_format"`
}

type Job struct {
	ID       string         `json:"job_id"`
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	FileID   string         `json:"file_id"`
	Error    string         `json:"error"`
	Result   map[string]any `json:"result"`
}

// Title is the source video title when the service reported one.
func (j Job) Title() string {
	if t, ok := j.Result["video_title"].(string); ok {
		return t
	}
	return ""
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extract api: status %d: %s", e.Code, e.Body)
}

type Client struct {
	base     string
	http     *http.Client
	interval time.Duration
	attempts int
	log      logging.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(x *Client) { x.http = c } }

// WithPolling sets the status poll interval and attempt budget used by Wait.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(x *Client) {
		if interval > 0 {
			x.interval = interval
		}
		if attempts > 0 {
			x.attempts = attempts
		}
	}
}

func WithLogger(l logging.Logger) Option { return func(x *Client) { x.log = l } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 60 * time.Second},
		interval: DefaultPollInterval,
		attempts: DefaultPollAttempts,
		log:      logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) DownloadURL(fileID string) string {
	return c.base + "/download/" + url.PathEscape(fileID)
}

func (c *Client) ThumbnailURL(fileID string) string {
	return c.base + "/thumbnail/" + url.PathEscape(fileID)
}

func (c *Client) ScreenshotURL(fileID string) string {
	return c.base + "/screenshot/" + url.PathEscape(fileID)
}

// Submit starts a job and returns its id.
func (c *Client) Submit(ctx context.Context, r Request) (string, error) {
	if r.Format == "" {
		r.Format = "mp3"
	}
	var job Job
	if err := c.doJSON(ctx, http.MethodPost, "/extract", r, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("extract api: empty job id")
	}
	return job.ID, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.doJSON(ctx, http.MethodGet, "/status/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Wait polls the job until it is done, fails, or the attempt budget runs out.
// progress, if set, sees every status reply.
func (c *Client) Wait(ctx context.Context, jobID string, progress func(Job)) (*Job, error) {
	t := time.NewTicker(c.interval)
	defer t.Stop()

	for i := 0; i < c.attempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}

		job, err := c.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(*job)
		}
		switch {
		case job.Error != "" || job.Status == StatusErrored:
			return job, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
		case job.Status == StatusDone && job.FileID != "":
			return job, nil
		}
	}
	return nil, fmt.Errorf("%w: %d polls", ErrJobTimeout, c.attempts)
}

// Download fetches a produced file and its content type.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.DownloadURL(fileID), nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read download: %w", common.ErrNetworkFailure, err)
	}
	if int64(len(body)) > maxDownloadBytes {
		return nil, "", fmt.Errorf("%w: download %s larger than %d bytes", common.ErrNetworkFailure, fileID, maxDownloadBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// Health returns nil when the service answers /health.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.base+"/health", nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	resp, err := c.do(ctx, method, c.base+path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("extract api: decode %s: %w", path, err)
	}
	return nil
}

// do sends the request and returns only 2xx responses.
func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" && body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrNetworkFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}
