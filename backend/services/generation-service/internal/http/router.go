package httpserver

import (
	"net/http"
	"strings"
)

// Routes defines HTTP endpoints.
type Routes struct {
	Health  http.Handler
	Metrics http.Handler
	LiveWS  http.Handler

	ReconcileDay   http.Handler
	ReconcileRange http.Handler
	GetPlan        http.Handler
	PutPlan        http.Handler
	Portfolio      http.Handler

	// APIMiddleware wraps every /api route, outermost first.
	APIMiddleware []func(http.Handler) http.Handler
}

// NewRouter sets up HTTP routing.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health.ServeHTTP))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", method(http.MethodGet, routes.Metrics.ServeHTTP))
	}
	if routes.LiveWS != nil {
		mux.Handle("/ws/generation", method(http.MethodGet, routes.LiveWS.ServeHTTP))
	}

	api := func(handler http.Handler) http.Handler {
		for i := len(routes.APIMiddleware) - 1; i >= 0; i-- {
			handler = routes.APIMiddleware[i](handler)
		}
		return handler
	}
	if routes.ReconcileDay != nil {
		mux.Handle("/api/reconciliation/day", api(method(http.MethodGet, routes.ReconcileDay.ServeHTTP)))
	}
	if routes.ReconcileRange != nil {
		mux.Handle("/api/reconciliation/range", api(method(http.MethodGet, routes.ReconcileRange.ServeHTTP)))
	}
	if routes.GetPlan != nil || routes.PutPlan != nil {
		mux.Handle("/api/plans", api(byMethod(map[string]http.Handler{
			http.MethodGet: routes.GetPlan,
			http.MethodPut: routes.PutPlan,
		})))
	}
	if routes.Portfolio != nil {
		mux.Handle("/api/portfolio", api(method(http.MethodGet, routes.Portfolio.ServeHTTP)))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}

func byMethod(handlers map[string]http.Handler) http.HandlerFunc {
	var allowed []string
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if handlers[m] != nil {
			allowed = append(allowed, m)
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		handler := handlers[r.Method]
		if handler == nil {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	}
}
