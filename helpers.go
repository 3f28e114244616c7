package hxioc

import (
	"net/http"

	"github.com/a-h/templ"
)

// Render writes a templ component to the HTTP response using the request's
// context, so components can find the request root.
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    hxioc.Render(w, r, hxioc.Page(body, hxioc.DefaultScriptID))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX returns true if the request originated from HTMX.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// IsBoosted returns true if the request is a boosted navigation (hx-boost).
func IsBoosted(r *http.Request) bool {
	return r.Header.Get("HX-Boosted") == "true"
}

// CurrentURL returns the URL the browser is on, from HX-Current-URL.
func CurrentURL(r *http.Request) string {
	return r.Header.Get("HX-Current-URL")
}

// TriggerID returns the id of the element that triggered the request.
func TriggerID(r *http.Request) string {
	return r.Header.Get("HX-Trigger")
}

// TargetID returns the id of the element receiving the response.
func TargetID(r *http.Request) string {
	return r.Header.Get("HX-Target")
}

// ComponentUID returns the uid of the component a refresh request is for.
func ComponentUID(r *http.Request) string {
	return r.FormValue(ParamUID)
}
