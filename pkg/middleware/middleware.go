// Package middleware provides composable net/http middleware: an ordered
// stack plus request logging, panic recovery, body limits and CORS.
package middleware

import "net/http"

// Func wraps an http.Handler with additional behavior.
type Func func(http.Handler) http.Handler

// System manages an ordered stack of HTTP middleware.
type System interface {
	Use(mw Func)
	Apply(handler http.Handler) http.Handler
}

type stack struct {
	layers []Func
}

// New creates an empty middleware System.
func New() System {
	return &stack{}
}

// Use appends mw; the first registered middleware is the outermost.
func (s *stack) Use(mw Func) {
	s.layers = append(s.layers, mw)
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.layers) - 1; i >= 0; i-- {
		handler = s.layers[i](handler)
	}
	return handler
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.status = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
