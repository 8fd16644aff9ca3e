package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lojasmm/choicebot/internal/block"
	"github.com/lojasmm/choicebot/internal/bot"
	"github.com/lojasmm/choicebot/internal/logger"
	"github.com/lojasmm/choicebot/internal/metrics"
	"github.com/lojasmm/choicebot/internal/store"
)

// Webhook is the WhatsApp webhook endpoint pair.
type Webhook interface {
	HandleVerify(w http.ResponseWriter, r *http.Request)
	HandleIncoming(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Registry  *block.Registry
	Bot       *bot.Handler
	Blocks    store.BlockStore
	Variables store.VariableStore
	Log       zerolog.Logger

	// Optional surfaces, mounted when set.
	Webhook   Webhook
	WebSocket http.HandlerFunc
}

// NewRouter builds the service's HTTP handler.
func NewRouter(d Deps) http.Handler {
	s := &server{
		registry: d.Registry,
		bot:      d.Bot,
		blocks:   d.Blocks,
		vars:     d.Variables,
		log:      d.Log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(d.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/blocks", func(r chi.Router) {
		r.Get("/", s.listBlocks)
		r.Put("/{blockID}", s.putBlock)
		r.Get("/{blockID}", s.getBlock)
		r.Delete("/{blockID}", s.deleteBlock)
	})

	r.Get("/schemas", s.listSchemas)
	r.Get("/schemas/{version}", s.getSchema)

	r.Route("/conversations/{conversationID}", func(r chi.Router) {
		r.Post("/turns", s.startTurn)
		r.Get("/turn", s.currentTurn)
		r.Post("/events", s.postEvent)
		r.Put("/variables/{variableID}", s.putVariable)
		r.Get("/variables/{variableID}", s.getVariable)
	})

	if d.Webhook != nil {
		r.Get("/webhook", d.Webhook.HandleVerify)
		r.Post("/webhook", d.Webhook.HandleIncoming)
	}
	if d.WebSocket != nil {
		r.Get("/ws", d.WebSocket)
	}

	return r
}
