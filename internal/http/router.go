package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// RouterConfig wires the handlers served by NewRouter.
type RouterConfig struct {
	Webhook  *WebhookHandler
	Bookings *BookingHandler
	Access   *AccessHandler
	// Health is called by GET /healthz; a nil func always reports healthy.
	Health     func(ctx context.Context) error
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

// NewRouter builds the HTTP surface. Every route except the inbound webhook
// and the health check requires an asserted principal.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	authenticated := RequirePrincipal(cfg.Logger)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Webhook != nil {
		mux.HandleFunc("/webhooks/inbound", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Webhook.Inbound(w, r)
		})
	}

	if cfg.Bookings != nil {
		mux.Handle("/bookings", authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Bookings.Create(w, r)
		})))
		mux.Handle("/series/", authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, action, ok := splitResourcePath(r.URL.Path, "/series/")
			if !ok {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			cfg.Bookings.SeriesAction(w, r, action)
		})))
	}

	mux.Handle("/bookings/", authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := splitResourcePath(r.URL.Path, "/bookings/")
		if !ok {
			http.NotFound(w, r)
			return
		}
		r = r.WithContext(ContextWithResourceID(r.Context(), id))
		switch {
		case action == "access" && cfg.Access != nil:
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Access.Show(w, r)
		case action == "complete" && cfg.Bookings != nil:
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Bookings.Complete(w, r)
		case action == "skip" && cfg.Bookings != nil:
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Bookings.Skip(w, r)
		default:
			http.NotFound(w, r)
		}
	})))

	if cfg.Access != nil {
		mux.Handle("/properties/", authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, action, ok := splitResourcePath(r.URL.Path, "/properties/")
			if !ok || action != "access" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			cfg.Access.Update(w, r)
		})))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// splitResourcePath parses "{prefix}{id}/{action}".
func splitResourcePath(path, prefix string) (id, action string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	id, action, found := strings.Cut(rest, "/")
	if !found || id == "" || action == "" || strings.Contains(action, "/") {
		return "", "", false
	}
	return id, action, true
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
