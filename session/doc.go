// Package session holds SessionStore implementations. The Session type and
// the SessionStore interface live in core so agents never depend on a
// concrete backend; only the wiring layer picks one.
package session
