package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sif/castable/frame"
	"github.com/go-sif/castable/params"
)

// statGrid collects statistic values by group key, statistic and column,
// and lays them out as a frame indexed by the group keys
type statGrid struct {
	groups  []string
	columns []string
	keys    [][]interface{}
	seen    map[string]bool
	cells   map[string]interface{}
}

func newStatGrid(groups, columns []string) *statGrid {
	g := &statGrid{
		groups:  groups,
		columns: columns,
		seen:    make(map[string]bool),
		cells:   make(map[string]interface{}),
	}
	if len(groups) == 0 {
		g.addKey([]interface{}{})
	}
	return g
}

func keyString(key []interface{}) string {
	parts := make([]string, len(key))
	for i, v := range key {
		switch {
		case frame.IsMissing(v):
			parts[i] = "."
		default:
			if f, ok := frame.ToFloat(v); ok {
				parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
			} else {
				parts[i] = fmt.Sprint(v)
			}
		}
	}
	return strings.Join(parts, "\x00")
}

func (g *statGrid) addKey(key []interface{}) string {
	if len(key) != len(g.groups) {
		key = normalizeKey(key, len(g.groups))
	}
	ks := keyString(key)
	if !g.seen[ks] {
		g.seen[ks] = true
		g.keys = append(g.keys, append([]interface{}(nil), key...))
	}
	return ks
}

// normalizeKey pads or truncates a result key to the number of group levels
func normalizeKey(key []interface{}, n int) []interface{} {
	out := make([]interface{}, n)
	copy(out, key)
	return out
}

func cellKey(ks, stat, column string) string {
	return ks + "\x01" + stat + "\x01" + params.FoldKey(column)
}

func (g *statGrid) set(key []interface{}, stat, column string, v interface{}) {
	ks := g.addKey(key)
	g.cells[cellKey(ks, stat, column)] = v
}

func (g *statGrid) get(key []interface{}, stat, column string) (interface{}, bool) {
	if len(key) != len(g.groups) {
		key = normalizeKey(key, len(g.groups))
	}
	v, ok := g.cells[cellKey(keyString(key), stat, column)]
	return v, ok
}

// fill sets every absent cell of stat to v
func (g *statGrid) fill(stat string, v interface{}) {
	for _, key := range g.keys {
		for _, c := range g.columns {
			if cur, ok := g.get(key, stat, c); !ok || cur == nil {
				g.set(key, stat, c, v)
			}
		}
	}
}

// frame lays out one row per group key and statistic. When level is set,
// the statistic becomes the last index level, labelled by levelValues or by
// the statistic name.
func (g *statGrid) frame(stats []string, level string, levelValues []interface{}) *frame.Frame {
	index := append([]string(nil), g.groups...)
	if level != "" {
		index = append(index, level)
	}
	out := frame.New(g.columns, index...)
	for _, key := range g.keys {
		ks := keyString(key)
		for si, stat := range stats {
			k := append([]interface{}(nil), key...)
			if level != "" {
				if levelValues != nil {
					k = append(k, levelValues[si])
				} else {
					k = append(k, stat)
				}
			}
			values := make([]interface{}, len(g.columns))
			for ci, c := range g.columns {
				values[ci] = g.cells[cellKey(ks, stat, c)]
			}
			_ = out.AppendRow(k, values)
		}
	}
	return out
}
