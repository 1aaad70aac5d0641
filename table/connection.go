package table

import (
	"weak"

	"github.com/go-sif/castable"
	"github.com/go-sif/castable/errors"
)

// SetSession binds the handle to sess in place. The handle does not keep
// the session alive.
func (t *Table) SetSession(sess *castable.Session) *Table {
	if sess == nil {
		t.conn = weak.Pointer[castable.Session]{}
		return t
	}
	t.conn = weak.Make(sess)
	return t
}

// WithSession returns a copy of the handle bound to sess
func (t *Table) WithSession(sess *castable.Session) *Table {
	return t.Copy().SetSession(sess)
}

// Session returns the session the handle is bound to. It fails with
// NoConnectionError when the handle is unbound or the session has been
// closed or collected.
func (t *Table) Session() (*castable.Session, error) {
	sess := t.conn.Value()
	if sess == nil || sess.Closed() {
		return nil, errors.NoConnectionError{}
	}
	return sess, nil
}

// HasSession reports whether Session would succeed
func (t *Table) HasSession() bool {
	_, err := t.Session()
	return err == nil
}
