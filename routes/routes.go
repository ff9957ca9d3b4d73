package routes

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/tournament-live/handlers"
	"github.com/Dosada05/tournament-live/middleware"
	"github.com/Dosada05/tournament-live/models"
)

//go:embed docs/swagger.json
var swaggerDoc []byte

func SetupRoutes(
	router *chi.Mux,
	allowedOrigins []string,
	auth *middleware.TokenAuth,
	liveHandler *handlers.LiveMatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Документация API
	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(swaggerDoc)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Websocket: таймауты сервера не должны обрывать долгие соединения, токен проверяет сам обработчик
	router.Get("/ws/live", webSocketHandler.ServeWs)

	router.Route("/api/live/matches/{matchID}", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(chiMiddleware.Timeout(15 * time.Second))

		r.Get("/state", liveHandler.GetMatchState)
		r.Get("/statistics", liveHandler.GetMatchStatistics)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authorize(models.RoleReferee, models.RoleAdmin))
			r.Post("/tracking", liveHandler.ReportTracking)
		})
	})
}
