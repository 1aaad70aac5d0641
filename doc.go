// Package castable contains the session layer of castable, a library for
// querying server-resident tables through deferred, DataFrame-like handles.
// This root package defines the Session, which owns a Transport to the
// server, reflects its actions, generates unique computed-variable names and
// caches column metadata, as well as the Result types returned by actions.
//
// Table and column handles live in the table package; they reference a
// Session without keeping it alive and only contact the server when a
// concrete result is requested.
package castable
