package castable

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-sif/castable/errors"
	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/internal/mcache"
	istats "github.com/go-sif/castable/internal/stats"
	"github.com/go-sif/castable/logging"
	"github.com/go-sif/castable/params"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// CommonParamsAction is reflected to learn the legal table and output table parameters
const CommonParamsAction = "builtins.cascommon"

// Session owns a Transport and the per-connection state shared by every
// table handle created from it
type Session struct {
	transport Transport
	opts      *Options
	logger    *slog.Logger
	ids       atomic.Uint64
	closed    atomic.Bool

	mu             sync.Mutex
	actions        map[string]string // folded bare or qualified name -> qualified name
	actionSets     map[string]string // folded set name -> set name
	tableParams    []string
	outTableParams []string
	docs           map[string]string

	cache mcache.Cache[*frame.Frame]
	group singleflight.Group
	stats *istats.SessionStatistics
}

// CreateSession creates a Session over transport. Server reflection is
// performed lazily.
func CreateSession(transport Transport, opts *Options) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	opts = opts.withDefaults()
	s := &Session{
		transport: transport,
		opts:      opts,
		logger:    opts.Logger,
		docs:      make(map[string]string),
		stats:     istats.New(),
	}
	if opts.CacheColumnInfo {
		cache, err := mcache.NewLRU[*frame.Frame](&mcache.LRUConfig{Size: opts.ColumnInfoCacheSize})
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Options returns a copy of the session configuration
func (s *Session) Options() Options {
	return *s.opts
}

// Logger returns the session logger
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Statistics returns the action statistics of the session
func (s *Session) Statistics() Statistics {
	return s.stats
}

// NextID returns an identifier which is unique for the lifetime of the session
func (s *Session) NextID() string {
	return strconv.FormatUint(s.ids.Add(1), 10)
}

// Closed reports whether the session has been closed
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close releases the transport. Any further use of the session fails with a NoConnectionError.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.transport.Close()
}

// Invoke runs an action and returns its result, whatever its severity
func (s *Session) Invoke(ctx context.Context, action string, args *params.Bundle) (*Result, error) {
	if s.Closed() {
		return nil, errors.NoConnectionError{}
	}
	if args == nil {
		args = params.New()
	}
	s.logger.DebugContext(ctx, "invoking action", "action", action, "params", args.Len(), "fingerprint", args.Fingerprint())
	if s.logger.Enabled(ctx, logging.LevelTrace) {
		s.logger.Log(ctx, logging.LevelTrace, "action parameters", "action", action, "params", args.GoString())
	}
	done := s.stats.Track(action)
	res, err := s.transport.Invoke(ctx, action, args)
	if err == nil && res == nil {
		err = fmt.Errorf("%s returned no result", action)
	}
	done(err != nil || res.Failed())
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "unable to invoke %s", action)
	}
	return res, nil
}

// Reflect describes an action
func (s *Session) Reflect(ctx context.Context, action string) (*ActionInfo, error) {
	if s.Closed() {
		return nil, errors.NoConnectionError{}
	}
	info, err := s.transport.Reflect(ctx, action)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "unable to reflect %s", action)
	}
	return info, nil
}

func (s *Session) loadActions(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.actions != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}
	if s.Closed() {
		return errors.NoConnectionError{}
	}
	_, err, _ := s.group.Do("actions", func() (interface{}, error) {
		listing, err := s.transport.ListActions(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "unable to list actions")
		}
		actions := make(map[string]string)
		sets := make(map[string]string)
		for set, names := range listing {
			sets[params.FoldKey(set)] = set
			for _, name := range names {
				qualified := set + "." + name
				actions[params.FoldKey(qualified)] = qualified
				if _, ok := actions[params.FoldKey(name)]; !ok {
					actions[params.FoldKey(name)] = qualified
				}
			}
		}
		s.mu.Lock()
		s.actions = actions
		s.actionSets = sets
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "loaded action listing", "sets", len(sets), "actions", len(actions))
		return nil, nil
	})
	return err
}

// QualifiedAction resolves a bare or qualified action name
func (s *Session) QualifiedAction(ctx context.Context, name string) (string, bool, error) {
	if err := s.loadActions(ctx); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.actions[params.FoldKey(name)]
	return q, ok, nil
}

// HasAction reports whether the server provides an action
func (s *Session) HasAction(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.QualifiedAction(ctx, name)
	return ok, err
}

// HasActionSet reports whether the server provides an action set
func (s *Session) HasActionSet(ctx context.Context, name string) (bool, error) {
	if err := s.loadActions(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.actionSets[params.FoldKey(name)]
	return ok, nil
}

// ActionNames returns the sorted qualified names of all known actions
func (s *Session) ActionNames(ctx context.Context) ([]string, error) {
	if err := s.loadActions(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, q := range s.actions {
		if !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Session) loadCommonParams(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.tableParams != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err, _ := s.group.Do("cascommon", func() (interface{}, error) {
		info, err := s.Reflect(ctx, CommonParamsAction)
		if err != nil {
			return nil, err
		}
		table, ok := info.Param("castable")
		if !ok {
			return nil, fmt.Errorf("%s does not describe castable", CommonParamsAction)
		}
		outTable, ok := info.Param("casouttable")
		if !ok {
			return nil, fmt.Errorf("%s does not describe casouttable", CommonParamsAction)
		}
		s.mu.Lock()
		s.tableParams = paramNames(table.ParmList)
		s.outTableParams = paramNames(outTable.ParmList)
		s.docs["castable"] = FormatParamDoc(table.ParmList)
		s.docs["casouttable"] = FormatParamDoc(outTable.ParmList)
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

func paramNames(list []ParamInfo) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Name)
	}
	return out
}

// TableParamNames returns the parameters legal in a table reference
func (s *Session) TableParamNames(ctx context.Context) ([]string, error) {
	if err := s.loadCommonParams(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tableParams...), nil
}

// OutTableParamNames returns the parameters legal in an output table reference
func (s *Session) OutTableParamNames(ctx context.Context) ([]string, error) {
	if err := s.loadCommonParams(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.outTableParams...), nil
}

// ParamDoc returns a human-readable description of the parameters of an
// action, or of "castable" and "casouttable"
func (s *Session) ParamDoc(ctx context.Context, action string) (string, error) {
	key := strings.ToLower(action)
	if key == "castable" || key == "casouttable" {
		if err := s.loadCommonParams(ctx); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	doc, ok := s.docs[key]
	s.mu.Unlock()
	if ok {
		return doc, nil
	}
	info, err := s.Reflect(ctx, action)
	if err != nil {
		return "", err
	}
	doc = FormatParamDoc(info.Params)
	s.mu.Lock()
	s.docs[key] = doc
	s.mu.Unlock()
	return doc, nil
}

// FormatParamDoc renders parameter descriptions, one per line, with
// sub-parameters indented
func FormatParamDoc(list []ParamInfo) string {
	var sb strings.Builder
	formatParams(&sb, list, "")
	return sb.String()
}

func formatParams(sb *strings.Builder, list []ParamInfo, indent string) {
	for _, p := range list {
		fmt.Fprintf(sb, "%s%s : %s", indent, p.Name, p.Type)
		if p.Required {
			sb.WriteString(", required")
		}
		if p.Default != nil {
			fmt.Fprintf(sb, ", default %v", p.Default)
		}
		sb.WriteString("\n")
		if p.Description != "" {
			fmt.Fprintf(sb, "%s    %s\n", indent, p.Description)
		}
		formatParams(sb, p.ParmList, indent+"    ")
	}
}

// CachedFrame returns the frame cached under key, calling load once to
// populate it. Concurrent callers with the same key share one load.
func (s *Session) CachedFrame(ctx context.Context, key uint64, load func(context.Context) (*frame.Frame, error)) (*frame.Frame, error) {
	if s.Closed() {
		return nil, errors.NoConnectionError{}
	}
	if s.cache == nil {
		return load(ctx)
	}
	if f, ok := s.cache.Get(key); ok {
		s.logger.DebugContext(ctx, "metadata cache hit", "key", key)
		return f, nil
	}
	v, err, _ := s.group.Do(strconv.FormatUint(key, 16), func() (interface{}, error) {
		f, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, f)
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*frame.Frame), nil
}

// PeekCachedFrame returns the frame cached under key without loading it
func (s *Session) PeekCachedFrame(key uint64) (*frame.Frame, bool) {
	if s.cache == nil || s.Closed() {
		return nil, false
	}
	return s.cache.Get(key)
}

// PurgeCache drops all cached metadata
func (s *Session) PurgeCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
