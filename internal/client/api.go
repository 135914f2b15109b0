package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/chronos/internal/letter"
	"github.com/atinyakov/chronos/internal/models"
)

// DefaultRequestTimeout bounds every API call except the snapshot stream.
const DefaultRequestTimeout = 30 * time.Second

var (
	// ErrNotFound is returned for capsules the server does not know.
	ErrNotFound = errors.New("capsule not found")
	// ErrRateLimited is returned when the server rejected the call for
	// exceeding its request window.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable is returned when letter generation is disabled on
	// the server.
	ErrUnavailable = errors.New("letter generation unavailable")
)

// LockedError is returned by Open before the capsule's unlock time.
type LockedError struct {
	UnlockAt time.Time
	Message  string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("capsule is sealed until %s", e.UnlockAt.Format(time.RFC1123))
}

// StatusError carries an unexpected response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client calls the capsule API at BaseURL.
type Client struct {
	BaseURL        string
	HTTP           *http.Client
	RequestTimeout time.Duration
}

// New returns a Client for baseURL using hc.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		HTTP:           hc,
		RequestTimeout: DefaultRequestTimeout,
	}
}

type apiError struct {
	Error    string          `json:"error"`
	Message  string          `json:"message"`
	UnlockAt int64           `json:"unlockAt"`
	Fallback json.RawMessage `json:"fallback"`
}

// do sends a request and decodes a 2xx JSON body into out. Other
// statuses are mapped to errors.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return decodeError(resp)
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e apiError
	if json.Unmarshal(data, &e) != nil || e.Error == "" {
		e.Error = strings.TrimSpace(string(data))
	}

	switch resp.StatusCode {
	case http.StatusLocked:
		return &LockedError{UnlockAt: time.UnixMilli(e.UnlockAt), Message: e.Error}
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	msg := e.Error
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

// List fetches the owner's capsules.
func (c *Client) List(ctx context.Context) ([]models.Capsule, error) {
	var out []models.Capsule
	if err := c.do(ctx, http.MethodGet, "/api/capsules", "", nil, &out); err != nil {
		return nil, err
	}
	return normalize(out), nil
}

// Seal creates a capsule from d.
func (c *Client) Seal(ctx context.Context, d models.Draft) (models.Capsule, error) {
	var out models.Capsule
	err := c.postJSON(ctx, "/api/capsules", d, &out)
	return out, err
}

// QuickNote seals note with a random unlock time chosen by the server.
func (c *Client) QuickNote(ctx context.Context, note string) (models.Capsule, error) {
	var out models.Capsule
	err := c.postJSON(ctx, "/api/capsules/quick", map[string]string{"note": note}, &out)
	return out, err
}

// Open returns an unlocked capsule or a *LockedError.
func (c *Client) Open(ctx context.Context, id string) (models.Capsule, error) {
	var out models.Capsule
	err := c.do(ctx, http.MethodPost, "/api/capsules/"+url.PathEscape(id)+"/open", "", nil, &out)
	return out, err
}

// Delete removes a capsule and its stored media.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/capsules/"+url.PathEscape(id), "", nil, nil)
}

// Upload stores a file before its capsule is sealed.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (models.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return models.Attachment{}, err
	}
	if _, err := part.Write(data); err != nil {
		return models.Attachment{}, err
	}
	if err := mw.Close(); err != nil {
		return models.Attachment{}, err
	}

	var out models.Attachment
	err = c.do(ctx, http.MethodPost, "/api/attachments", mw.FormDataContentType(), &buf, &out)
	return out, err
}

// GenerateLetter asks the server for a letter. The returned letter is
// always usable: on any failure it is the deterministic fallback and the
// error says why. Rate limiting is reported as ErrRateLimited.
func (c *Client) GenerateLetter(ctx context.Context, req models.LetterRequest) (models.Letter, error) {
	var out models.Letter
	if err := c.postJSON(ctx, "/api/letters/generate", req, &out); err != nil {
		return letter.Fallback(req.UserThoughts), err
	}
	if out.Subject == "" && out.Content == "" {
		return letter.Fallback(req.UserThoughts), letter.ErrEmptyResponse
	}
	return out, nil
}

// SuggestTitle asks the server for a title. Like GenerateLetter it always
// returns a usable title.
func (c *Client) SuggestTitle(ctx context.Context, content string) (string, error) {
	var out struct {
		Title string `json:"title"`
	}
	if err := c.postJSON(ctx, "/api/letters/title", map[string]string{"content": content}, &out); err != nil {
		return letter.FallbackTitle, err
	}
	if strings.TrimSpace(out.Title) == "" {
		return letter.FallbackTitle, nil
	}
	return out.Title, nil
}

// Registration is the server's answer to Register: the new profile and the
// PEM-encoded credentials for connecting as it.
type Registration struct {
	User models.User `json:"user"`
	Cert string      `json:"cert"`
	Key  string      `json:"key"`
	CA   string      `json:"ca"`
}

// Register creates an owner account. It needs no client certificate.
func (c *Client) Register(ctx context.Context, login, displayName string) (Registration, error) {
	var out Registration
	err := c.postJSON(ctx, "/api/register", map[string]string{"login": login, "displayName": displayName}, &out)
	return out, err
}

// Me returns the profile of the certificate's owner.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	err := c.do(ctx, http.MethodGet, "/api/me", "", nil, &out)
	return out, err
}

// Health reports whether the server is up and has letter generation.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out struct {
		Status          string `json:"status"`
		GeminiAvailable bool   `json:"geminiAvailable"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return false, err
	}
	return out.GeminiAvailable, nil
}

func normalize(in []models.Capsule) []models.Capsule {
	if in == nil {
		return []models.Capsule{}
	}
	for i := range in {
		in[i].Attachments = models.NormalizeAttachments(in[i].Attachments)
	}
	return in
}
