// Package backend is the client of the suite endpoint (api.php). Every tool
// posts a form with a "tool" discriminator and receives a loosely specified
// JSON envelope.
package backend

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
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-suite/internal/domain/assessment"
	"github.com/khanhnv2901/seca-suite/internal/jsonrepair"
	"github.com/khanhnv2901/seca-suite/internal/shared/constants"
)

const bodySnippetLen = 512

// File is a multipart upload.
type File struct {
	Field  string
	Name   string
	Reader io.Reader
	Size   int64
}

// ProgressFunc receives the number of body bytes sent and the expected total.
type ProgressFunc func(sent, total int64)

// Request is one tool call.
type Request struct {
	Tool     assessment.Tool
	Fields   url.Values
	Files    []File
	Progress ProgressFunc
}

// Response is a decoded envelope.
type Response struct {
	Status   int
	Data     json.RawMessage
	Message  string
	Repaired bool
	Elapsed  time.Duration
}

type envelope struct {
	Success *assessment.Flag `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   assessment.Text  `json:"error"`
	Message assessment.Text  `json:"message"`
}

// InFlight allows one outstanding request per tool.
type InFlight struct {
	busy sync.Map // assessment.Tool -> *atomic.Bool
}

func (f *InFlight) flag(tool assessment.Tool) *atomic.Bool {
	v, _ := f.busy.LoadOrStore(tool, new(atomic.Bool))
	return v.(*atomic.Bool)
}

// Acquire marks tool as busy. It returns false if a request is already running.
func (f *InFlight) Acquire(tool assessment.Tool) bool {
	return f.flag(tool).CompareAndSwap(false, true)
}

// Release clears the busy mark of tool.
func (f *InFlight) Release(tool assessment.Tool) {
	f.flag(tool).Store(false)
}

// Busy reports whether a request for tool is outstanding.
func (f *InFlight) Busy(tool assessment.Tool) bool {
	return f.flag(tool).Load()
}

// Client posts tool requests to the suite endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Timeouts   map[assessment.Tool]time.Duration
	Token      string

	inflight InFlight
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.Logger = l }
}

// WithTimeout overrides the timeout of one tool.
func WithTimeout(tool assessment.Tool, d time.Duration) Option {
	return func(c *Client) { c.Timeouts[tool] = d }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.Token = token }
}

// New returns a client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{},
		Logger:     zap.NewNop(),
		Timeouts: map[assessment.Tool]time.Duration{
			assessment.ToolGRC: constants.GRCTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether a request for tool is outstanding.
func (c *Client) Busy(tool assessment.Tool) bool { return c.inflight.Busy(tool) }

func (c *Client) timeout(tool assessment.Tool) time.Duration {
	if d, ok := c.Timeouts[tool]; ok && d > 0 {
		return d
	}
	return constants.DefaultToolTimeout
}

// Post sends req and decodes the envelope. Non-2xx statuses, unreadable
// bodies and success:false all come back as *Error.
func (c *Client) Post(ctx context.Context, req Request) (*Response, error) {
	if !c.inflight.Acquire(req.Tool) {
		return nil, &Error{Kind: KindBusy, Tool: req.Tool, Hint: "Wait for the current analysis to finish."}
	}
	defer c.inflight.Release(req.Tool)

	timeout := c.timeout(req.Tool)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fields := url.Values{}
	for k, v := range req.Fields {
		fields[k] = v
	}
	fields.Set("tool", string(req.Tool))

	body, contentType, total := c.encode(fields, req.Files)
	if req.Progress != nil {
		body = &progressReader{r: body, total: total, fn: req.Progress}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		body.Close()
		return nil, &Error{Kind: KindValidation, Tool: req.Tool, Message: "invalid endpoint", Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, req.Tool, timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, req.Tool, timeout, err)
	}
	elapsed := time.Since(start)
	c.Logger.Debug("backend response",
		zap.String("tool", string(req.Tool)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", elapsed),
	)

	out, err := decodeEnvelope(req.Tool, resp.StatusCode, raw)
	if err != nil {
		return nil, err
	}
	out.Elapsed = elapsed
	if out.Repaired {
		c.Logger.Warn("backend response needed repair", zap.String("tool", string(req.Tool)))
	}
	return out, nil
}

func (c *Client) transportError(ctx context.Context, tool assessment.Tool, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindTimeout,
			Tool:    tool,
			Message: fmt.Sprintf("no response after %s", timeout),
			Hint:    fmt.Sprintf("Large inputs take longer. Raise timeouts.%s in the config and try again.", tool),
			Err:     err,
		}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &Error{Kind: KindTimeout, Tool: tool, Message: uerr.Error(), Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetwork, Tool: tool, Message: "request cancelled", Err: err}
	}
	c.Logger.Warn("backend unreachable", zap.String("tool", string(tool)), zap.Error(err))
	return &Error{
		Kind:    KindNetwork,
		Tool:    tool,
		Message: err.Error(),
		Hint:    "Check that the endpoint " + c.Endpoint + " is reachable and the web server is running.",
		Err:     err,
	}
}

// parseBody decodes raw into an envelope, repairing it first when it is not
// valid JSON. A valid body that is not an envelope object becomes the data.
func parseBody(raw []byte) (env envelope, body []byte, repaired bool, err error) {
	body = bytes.TrimSpace(raw)
	if len(body) == 0 {
		return env, body, false, io.ErrUnexpectedEOF
	}
	if !json.Valid(body) {
		fixed, rerr := jsonrepair.Repair(string(body))
		if rerr != nil {
			return env, body, false, rerr
		}
		body, repaired = []byte(fixed.JSON), true
	}
	if body[0] != '{' || json.Unmarshal(body, &env) != nil {
		env = envelope{Data: json.RawMessage(body)}
	}
	return env, body, repaired, nil
}

func decodeEnvelope(tool assessment.Tool, status int, raw []byte) (*Response, error) {
	env, body, repaired, err := parseBody(raw)

	if status < 200 || status > 299 {
		e := &Error{Kind: KindHTTP, Tool: tool, Status: status, Hint: hintForStatus(status)}
		if err == nil {
			e.Message = env.Error.Or(string(env.Message))
			if h := hintForMessage(tool, e.Message); h != "" {
				e.Hint = h
			}
		}
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return nil, e
	}
	if err != nil {
		return nil, &Error{
			Kind:    KindParse,
			Tool:    tool,
			Status:  status,
			Message: "response is not valid JSON",
			Hint:    "The server printed something other than JSON. Check its error log for PHP warnings.",
			Body:    snippet(raw),
			Err:     err,
		}
	}

	if env.Success != nil && !bool(*env.Success) {
		msg := env.Error.Or(env.Message.Or("the server reported a failure"))
		return nil, &Error{Kind: KindBusiness, Tool: tool, Status: status, Message: msg, Hint: hintForMessage(tool, msg)}
	}

	out := &Response{Status: status, Message: string(env.Message), Repaired: repaired}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		out.Data = json.RawMessage(body)
	} else {
		out.Data = env.Data
	}
	return out, nil
}

func snippet(raw []byte) string {
	s := string(raw)
	if len(s) > bodySnippetLen {
		s = s[:bodySnippetLen] + "..."
	}
	return s
}

func (c *Client) encode(fields url.Values, files []File) (io.ReadCloser, string, int64) {
	if len(files) == 0 {
		enc := fields.Encode()
		return io.NopCloser(strings.NewReader(enc)), "application/x-www-form-urlencoded", int64(len(enc))
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	var total int64
	for _, f := range files {
		total += f.Size
	}

	go func() {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range fields[k] {
				if err := mw.WriteField(k, v); err != nil {
					pw.CloseWithError(err)
					return
				}
			}
		}
		for _, f := range files {
			part, err := mw.CreateFormFile(f.Field, f.Name)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, f.Reader); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()
	return pr, mw.FormDataContentType(), total
}

type progressReader struct {
	r     io.ReadCloser
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.sent > p.total {
			p.total = p.sent
		}
		p.fn(p.sent, p.total)
	}
	return n, err
}

func (p *progressReader) Close() error { return p.r.Close() }
