package handler

import (
	"net/http"

	"github.com/ksipredictor/ksipredictor/internal/api/middleware"
	"github.com/ksipredictor/ksipredictor/internal/api/models"
	"github.com/ksipredictor/ksipredictor/internal/api/response"
)

// NotFound answers requests for unknown routes with a problem document.
func NotFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, r, "no route matches "+r.Method+" "+r.URL.Path)
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.Error(w, r, models.NewMethodNotAllowed(
		middleware.GetRequestID(r.Context()),
		r.Method+" is not supported on "+r.URL.Path,
	))
}
