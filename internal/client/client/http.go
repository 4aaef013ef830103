package client

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

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	session *Session
	timeout time.Duration
	log     logging.Logger
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// WithTimeout bounds every request. Zero leaves requests bounded only by the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) { h.timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(h *HTTPClient) { h.log = l }
}

func NewHTTPClient(baseURL string, session *Session, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		session: session,
		timeout: 15 * time.Second,
		log:     logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("module", "api_client")
	return c
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) ListMine(ctx context.Context) ([]models.Inspection, error) {
	var dtos []InspectionDTO
	if err := c.do(ctx, http.MethodGet, "/inspections/mine", true, nil, &dtos); err != nil {
		return nil, err
	}

	out := make([]models.Inspection, 0, len(dtos))
	for _, d := range dtos {
		in, skipped := d.ToModel()
		for _, err := range skipped {
			c.log.Warn(ctx, "skipped undecodable entry in pull", "inspection", d.Id, "err", err)
		}
		out = append(out, in)
	}
	return out, nil
}

func (c *HTTPClient) PushInspection(ctx context.Context, in models.Inspection) (Ack, error) {
	var ack ackDTO
	path := "/inspections/" + url.PathEscape(in.Id)
	if err := c.do(ctx, http.MethodPut, path, true, newInspectionPush(in), &ack); err != nil {
		return Ack{}, withId(err, in.Id)
	}
	return toAck(ack, in.Id), nil
}

func (c *HTTPClient) PushEntry(ctx context.Context, e models.Entry) (Ack, error) {
	body, err := newEntryPush(e)
	if err != nil {
		return Ack{}, err
	}

	var ack ackDTO
	path := "/inspection-entries/" + url.PathEscape(e.Id)
	if err := c.do(ctx, http.MethodPatch, path, true, body, &ack); err != nil {
		return Ack{}, withId(err, e.Id)
	}
	return toAck(ack, e.Id), nil
}

func (c *HTTPClient) CopyInspection(ctx context.Context, id string, opts CopyOptions) (*models.Inspection, error) {
	req := copyRequest{
		Type:          opts.Type,
		ScheduledDate: opts.ScheduledAt,
		CopyImages:    opts.CopyImages,
		CopyText:      opts.CopyText,
	}

	var d InspectionDTO
	if err := c.do(ctx, http.MethodPost, "/inspections/"+url.PathEscape(id)+"/copy", true, req, &d); err != nil {
		return nil, err
	}
	in, skipped := d.ToModel()
	for _, err := range skipped {
		c.log.Warn(ctx, "skipped undecodable entry in copy", "inspection", d.Id, "err", err)
	}
	return &in, nil
}

// Health checks GET /health without credentials.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", false, nil, nil)
}

func toAck(a ackDTO, id string) Ack {
	if a.Id == "" {
		a.Id = id
	}
	return Ack{Id: a.Id, Version: a.Version}
}

func withId(err error, id string) error {
	var ce *ConflictError
	if errors.As(err, &ce) && ce.Id == "" {
		ce.Id = id
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, auth bool, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if err := c.session.Authorize(req); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if auth {
		c.session.Refresh(resp)
	}

	if err := mapStatus(resp); err != nil {
		c.log.Debug(ctx, "request failed", "method", method, "path", path, "status", resp.StatusCode, "err", err)
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func mapStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, common.ErrNotFound)
	case code == http.StatusConflict:
		var v struct {
			Id      string `json:"id"`
			Version int64  `json:"version"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&v)
		return &ConflictError{Id: v.Id, Version: v.Version}
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w: %s; body: %s", ErrRejected, resp.Status, strings.TrimSpace(string(b)))
}
