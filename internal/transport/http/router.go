package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/tracing"
	httpmw "github.com/cwrk-planet/messaging-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/messaging-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterDeps struct {
	Handler        *Handler
	Auth           httpmw.Authenticator
	WS             http.HandlerFunc
	Metrics        http.Handler
	Store          Pinger
	AllowedOrigins []string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(tracing.Middleware)
	r.Use(httputil.MiddlewareLogging)
	r.Use(middlewareChi.Recoverer)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httputil.HeaderRequestID},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS endpoint
	r.Get("/ws", d.WS)

	r.Route("/api/v1/messages", func(pr chi.Router) {
		pr.Use(httpmw.Auth(d.Auth))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Get("/sidebar-users", d.Handler.SidebarUsers)
		pr.Get("/users", d.Handler.SidebarUsers)
		pr.Get("/messages", d.Handler.Messages)
		pr.Post("/send-message", d.Handler.SendMessage)
		pr.Put("/mark-read", d.Handler.MarkRead)
		pr.Put("/read", d.Handler.MarkRead)
		pr.Get("/online-users", d.Handler.OnlineUsers)
	})

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Store != nil {
			if err := d.Store.Ping(r.Context()); err != nil {
				httputil.Errorf(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
