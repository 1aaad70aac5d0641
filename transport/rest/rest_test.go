package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/logging"
	"github.com/go-sif/castable/params"
	"github.com/go-sif/castable/table"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sessionID = "5f8a9b2c-1d3e-4f5a-8b6c-7d8e9f0a1b2c"

const carsFetch = `{"_ctb": true,
  "schema": [{"name": "Make", "type": "varchar"}, {"name": "MSRP", "type": "double"}, {"name": "Cylinders", "type": "int64"}],
  "rows": [["Acura", 36945, 6], ["Buick", 26470, null]],
  "attributes": {"Title": {"type": "string", "value": "Selected Rows from Table CARS"}}}`

var responses = map[string]string{
	"simple.numRows": `{"disposition": {"severity": 0, "reason": "ok", "statusCode": 0},
  "logEntries": [{"level": "note", "message": "NOTE: counted rows"}],
  "results": {"numrows": 2}}`,
	"table.fetch": `{"disposition": {"severity": 0}, "results": {"Fetch": ` + carsFetch + `}}`,
	"simple.summary": `{"disposition": {"severity": 0}, "results": {
  "ByGroupInfo": {"_ctb": true, "schema": [{"name": "Origin", "type": "varchar"}], "rows": [["Asia"]]},
  "ByGroup1.Summary": {"_ctb": true, "schema": [{"name": "Column", "type": "varchar"}, {"name": "Mean", "type": "double"}],
    "rows": [["MSRP", 27820]],
    "attributes": {"ByVar1": {"type": "string", "value": "Origin"}, "ByVar1Value": {"type": "string", "value": "Asia"}}}}}`,
	"builtins.help": `{"disposition": {"severity": 0}, "results": {
  "builtins": {"_ctb": true, "schema": [{"name": "name", "type": "varchar"}, {"name": "description", "type": "varchar"}],
    "rows": [["help", "Shows the parameters for an action"], ["reflect", "Shows detailed parameter information"]]},
  "table": {"_ctb": true, "schema": [{"name": "name", "type": "varchar"}, {"name": "description", "type": "varchar"}],
    "rows": [["fetch", "Fetches rows from a table"], ["columnInfo", "Shows column information"]]},
  "simple": {"_ctb": true, "schema": [{"name": "name", "type": "varchar"}, {"name": "description", "type": "varchar"}],
    "rows": [["numRows", "Shows the number of rows"]]}}}`,
	"builtins.reflect": `{"disposition": {"severity": 0}, "results": [{"name": "table", "actions": [
  {"name": "fetch", "desc": "Fetches rows from a table", "params": [
    {"name": "table", "parmType": "value_list", "isRequired": true, "parmList": [{"name": "name", "parmType": "string"}]},
    {"name": "to", "parmType": "int64", "default": 20}]}]}]}`,
	"simple.fail": `{"disposition": {"severity": 2, "reason": "abort", "statusCode": 2710999, "formattedStatus": "ERROR: The action failed."}}`,
	"table.bad":   `{"disposition": {"severity": 0}, "results": {"Fetch": {"_ctb": true, "schema": [{"name": "a", "type": "double"}], "rows": [[1, 2]]}}}`,
}

// fakeServer serves canned responses keyed by action name
type fakeServer struct {
	mu      sync.Mutex
	session string
	bodies  map[string][]string
	cookies []string
	deleted bool
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /cas/sessions", func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "casuser" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "affinity", Value: "node1", Path: "/"})
		fmt.Fprintf(w, `{"session": %q}`, f.session)
	})
	mux.HandleFunc("POST /cas/sessions/{id}/actions/{action}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != f.session {
			http.Error(w, "no such session", http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		action := strings.ToLower(r.PathValue("action"))
		f.mu.Lock()
		if f.bodies == nil {
			f.bodies = make(map[string][]string)
		}
		f.bodies[action] = append(f.bodies[action], string(body))
		if c, err := r.Cookie("affinity"); err == nil {
			f.cookies = append(f.cookies, c.Value)
		}
		f.mu.Unlock()
		resp, ok := lookup(action)
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, resp)
	})
	mux.HandleFunc("DELETE /cas/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = true
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{}`)
	})
	return mux
}

func (f *fakeServer) requests(action string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies[strings.ToLower(action)]...)
}

// lookup finds a canned response; action names are case-insensitive
func lookup(action string) (string, bool) {
	for name, resp := range responses {
		if strings.EqualFold(name, action) {
			return resp, true
		}
	}
	return "", false
}

func connect(t *testing.T) (*fakeServer, *Transport) {
	fake := &fakeServer{session: sessionID}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	tr, err := Connect(context.Background(), &Conf{
		BaseURL:  srv.URL,
		Username: "casuser",
		Password: "secret",
		Logger:   logging.Discard(),
	})
	require.Nil(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return fake, tr
}

func TestConnect(t *testing.T) {
	fake, tr := connect(t)
	require.Equal(t, sessionID, tr.Session().String())

	_, err := tr.Invoke(context.Background(), "simple.numRows", nil)
	require.Nil(t, err)
	require.Equal(t, []string{"node1"}, fake.cookies)

	srv := httptest.NewServer((&fakeServer{session: "not-a-session"}).handler())
	defer srv.Close()
	_, err = Connect(context.Background(), &Conf{BaseURL: srv.URL, Username: "casuser", Password: "secret"})
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "invalid session id")

	_, err = Connect(context.Background(), &Conf{BaseURL: srv.URL, Username: "casuser", Password: "wrong"})
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "401")

	_, err = Connect(context.Background(), &Conf{})
	require.IsType(t, errors.ParameterError{}, err)
}

func TestInvokeDecodesTables(t *testing.T) {
	fake, tr := connect(t)
	ctx := context.Background()

	res, err := tr.Invoke(ctx, "simple.numRows", params.New("table", params.New("name", "cars")))
	require.Nil(t, err)
	require.Equal(t, 2.0, res.Values["numrows"])
	require.Equal(t, []string{"NOTE: counted rows"}, res.Messages)
	sent := fake.requests("simple.numRows")
	require.Len(t, sent, 1)
	require.Equal(t, "cars", gjson.Get(sent[0], "table.name").String())

	res, err = tr.Invoke(ctx, "table.fetch", nil)
	require.Nil(t, err)
	fetched := res.Table("Fetch")
	require.NotNil(t, fetched)
	require.Equal(t, "Selected Rows from Table CARS", fetched.Attrs["Title"])
	require.Equal(t, []interface{}{"Acura", 36945.0, int64(6)}, fetched.Frame.Row(0))
	require.Equal(t, []interface{}{"Buick", 26470.0, nil}, fetched.Frame.Row(1))
	require.Equal(t, "{}", fake.requests("table.fetch")[0])
}

func TestByGroupTables(t *testing.T) {
	_, tr := connect(t)
	res, err := tr.Invoke(context.Background(), "simple.summary", nil)
	require.Nil(t, err)
	require.Len(t, res.Tables, 2)
	summary := res.Table("ByGroup1.Summary")
	require.NotNil(t, summary)
	require.Equal(t, "Summary", summary.Name)
	require.Equal(t, []castable.ByGroupValue{{Name: "Origin", Value: "Asia"}}, summary.ByGroups)
}

func TestListActionsAndReflect(t *testing.T) {
	_, tr := connect(t)
	ctx := context.Background()

	actions, err := tr.ListActions(ctx)
	require.Nil(t, err)
	require.Equal(t, []string{"fetch", "columnInfo"}, actions["table"])
	require.Len(t, actions, 3)

	info, err := tr.Reflect(ctx, "table.fetch")
	require.Nil(t, err)
	require.Equal(t, "Fetches rows from a table", info.Description)
	p, ok := info.Param("TABLE")
	require.True(t, ok)
	require.True(t, p.Required)
	require.Equal(t, "name", p.ParmList[0].Name)
	to, ok := info.Param("to")
	require.True(t, ok)
	require.Equal(t, 20.0, to.Default)

	_, err = tr.Reflect(ctx, "table.nothere")
	require.Equal(t, errors.KeyNotFoundError{Key: "table.nothere"}, err)
}

func TestFailures(t *testing.T) {
	_, tr := connect(t)
	ctx := context.Background()

	res, err := tr.Invoke(ctx, "simple.fail", nil)
	require.Nil(t, err)
	require.True(t, res.Failed())
	require.Equal(t, "ERROR: The action failed.", res.Status)
	require.Equal(t, 2710999, res.StatusCode)

	_, err = tr.Invoke(ctx, "table.bad", nil)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "row 0 has 2 values")

	_, err = tr.Invoke(ctx, "table.missing", nil)
	require.NotNil(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestClose(t *testing.T) {
	fake, tr := connect(t)
	require.Nil(t, tr.Close())
	require.True(t, fake.deleted)
	require.Nil(t, tr.Close())
	_, err := tr.Invoke(context.Background(), "simple.numRows", nil)
	require.Equal(t, errors.NoConnectionError{}, err)
}

func TestSessionOverREST(t *testing.T) {
	fake, tr := connect(t)
	sess, err := castable.CreateSession(tr, &castable.Options{Logger: logging.Discard()})
	require.Nil(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	ctx := context.Background()

	cars := table.Open(sess, "cars", "caslib", "casuser")
	n, err := cars.NumRows(ctx)
	require.Nil(t, err)
	require.Equal(t, 2, n)

	head, err := cars.Head(ctx, 2, "Make", "MSRP")
	require.Nil(t, err)
	require.Equal(t, []string{"Make", "MSRP"}, head.Columns())
	sent := fake.requests("table.fetch")
	require.Len(t, sent, 1)
	require.Equal(t, "casuser", gjson.Get(sent[0], "table.caslib").String())
	require.Equal(t, int64(2), gjson.Get(sent[0], "to").Int())

	ok, err := sess.HasAction(ctx, "numrows")
	require.Nil(t, err)
	require.True(t, ok)
}
