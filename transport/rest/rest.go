// Package rest implements castable.Transport over the server's HTTP
// interface. Responses are decoded with https://github.com/tidwall/gjson.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/config"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/params"
	uuid "github.com/gofrs/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"
)

const (
	sessionsPath = "cas/sessions"
	// requestIDHeader correlates server logs with client logs
	requestIDHeader = "X-Request-Id"
	// maxErrorBody bounds the part of an error response quoted in errors
	maxErrorBody = 512
)

// Conf configures a Transport
type Conf struct {
	BaseURL  string        // The server URL, such as https://cas.example.com:8777. Required.
	Username string        // Basic authentication user. Optional.
	Password string        // Basic authentication password. Optional.
	Timeout  time.Duration // Timeout of each request. Defaults to 60 seconds.
	// Client overrides the HTTP client. Its Timeout is left untouched and a
	// cookie jar is only installed when it has none.
	Client *http.Client
	// Logger for request logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// ConfFromConfig builds a Conf from the rest section of a configuration file
func ConfFromConfig(c config.RESTConfig, logger *slog.Logger) *Conf {
	return &Conf{
		BaseURL:  c.BaseURL,
		Username: c.Username,
		Password: c.Password,
		Timeout:  c.Timeout,
		Logger:   logger,
	}
}

// Transport is a connection to one server session
type Transport struct {
	conf    *Conf
	base    *url.URL
	client  *http.Client
	logger  *slog.Logger
	session uuid.UUID

	lock   sync.Mutex
	closed bool
}

// Connect creates a server session
func Connect(ctx context.Context, conf *Conf) (*Transport, error) {
	if conf == nil || conf.BaseURL == "" {
		return nil, errors.NewParameterError("a base URL is required")
	}
	base, err := url.Parse(conf.BaseURL)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid base URL %s", conf.BaseURL)
	}
	if conf.Timeout == 0 {
		conf.Timeout = 60 * time.Second
	}
	if conf.Logger == nil {
		conf.Logger = slog.Default()
	}
	client := conf.Client
	if client == nil {
		client = &http.Client{Timeout: conf.Timeout}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}
	t := &Transport{conf: conf, base: base, client: client, logger: conf.Logger}

	body, err := t.do(ctx, http.MethodPost, sessionsPath, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "unable to create session")
	}
	id := gjson.GetBytes(body, "session").String()
	if t.session, err = uuid.FromString(id); err != nil {
		return nil, pkgerrors.Wrapf(err, "server returned an invalid session id %q", id)
	}
	t.logger.DebugContext(ctx, "created session", "session", t.session.String(), "url", base.Redacted())
	return t, nil
}

// Session returns the server session id
func (t *Transport) Session() uuid.UUID {
	return t.session
}

func (t *Transport) isClosed() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.closed
}

// do sends one request and returns the body of a successful response
func (t *Transport) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	u := t.base.JoinPath(path)
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id, err := uuid.NewV4(); err == nil {
		req.Header.Set(requestIDHeader, id.String())
	}
	if t.conf.Username != "" {
		req.SetBasicAuth(t.conf.Username, t.conf.Password)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "unable to read response of %s %s", method, u.Path)
	}
	if resp.StatusCode/100 != 2 {
		quoted := strings.TrimSpace(string(data))
		if len(quoted) > maxErrorBody {
			quoted = quoted[:maxErrorBody] + "..."
		}
		return nil, fmt.Errorf("%s %s returned %s: %s", method, u.Path, resp.Status, quoted)
	}
	return data, nil
}

func (t *Transport) call(ctx context.Context, action string, args *params.Bundle) (gjson.Result, error) {
	if t.isClosed() {
		return gjson.Result{}, errors.NoConnectionError{}
	}
	if args == nil {
		args = params.New()
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return gjson.Result{}, pkgerrors.Wrapf(err, "unable to encode arguments of %s", action)
	}
	start := time.Now()
	data, err := t.do(ctx, http.MethodPost, sessionsPath+"/"+t.session.String()+"/actions/"+action, payload)
	if err != nil {
		return gjson.Result{}, pkgerrors.Wrapf(err, "unable to invoke %s", action)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%s returned a malformed response", action)
	}
	t.logger.DebugContext(ctx, "invoked action", "action", action, "elapsed", time.Since(start), "bytes", len(data))
	return gjson.ParseBytes(data), nil
}

// Invoke runs a qualified action
func (t *Transport) Invoke(ctx context.Context, action string, args *params.Bundle) (*castable.Result, error) {
	doc, err := t.call(ctx, action, args)
	if err != nil {
		return nil, err
	}
	res, err := decodeResult(doc)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "unable to decode result of %s", action)
	}
	return res, nil
}

// Reflect describes a qualified action using builtins.reflect
func (t *Transport) Reflect(ctx context.Context, action string) (*castable.ActionInfo, error) {
	doc, err := t.call(ctx, "builtins.reflect", params.New("action", action))
	if err != nil {
		return nil, err
	}
	if failed := remoteError("builtins.reflect", doc); failed != nil {
		return nil, failed
	}
	return decodeActionInfo(doc.Get("results"), action)
}

// ListActions lists the loaded action sets using builtins.help
func (t *Transport) ListActions(ctx context.Context) (map[string][]string, error) {
	doc, err := t.call(ctx, "builtins.help", nil)
	if err != nil {
		return nil, err
	}
	if failed := remoteError("builtins.help", doc); failed != nil {
		return nil, failed
	}
	res, err := decodeResult(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "unable to decode action listing")
	}
	out := make(map[string][]string, len(res.Tables))
	for _, tbl := range res.Tables {
		names, err := tbl.Frame.Column("name")
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "action set %s", tbl.Key)
		}
		for _, n := range names {
			out[tbl.Key] = append(out[tbl.Key], fmt.Sprint(n))
		}
	}
	return out, nil
}

// Close ends the server session. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.lock.Lock()
	if t.closed {
		t.lock.Unlock()
		return nil
	}
	t.closed = true
	t.lock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), t.conf.Timeout)
	defer cancel()
	if _, err := t.do(ctx, http.MethodDelete, sessionsPath+"/"+t.session.String(), nil); err != nil {
		return pkgerrors.Wrap(err, "unable to end session")
	}
	t.client.CloseIdleConnections()
	return nil
}
