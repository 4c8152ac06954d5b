// internal/httpapi/httpapi.go
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tamzrod/ftbridge/internal/bridge"
	"github.com/tamzrod/ftbridge/internal/health"
	"github.com/tamzrod/ftbridge/internal/telemetry"
)

// Source is the read side of a running bridge.
type Source interface {
	Snapshot() telemetry.Reading
	Health() health.Snapshot
	Stats() bridge.Stats
	Recover(ctx context.Context) error
}

// RecoverTimeout bounds a manual recovery request.
const RecoverTimeout = time.Second

// ---- payloads ----

type FTPayload struct {
	Forces     [3]int32 `json:"forces"`
	Torques    [3]int32 `json:"torques"`
	ForceNorm  float64  `json:"force_norm"`
	TorqueNorm float64  `json:"torque_norm"`
}

type BusPayload struct {
	Health           uint16       `json:"health"`
	State            string       `json:"state"`
	TxErrors         uint8        `json:"tx_errors"`
	RxErrors         uint8        `json:"rx_errors"`
	SecondsInError   uint16       `json:"seconds_in_error"`
	BusOffCount      uint16       `json:"bus_off_count"`
	RecoveryFailures uint16       `json:"recovery_failures"`
	Since            time.Time    `json:"since"`
	Stats            bridge.Stats `json:"stats"`
}

// ErrResponse renders an error as JSON with a status code.
type ErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	ErrorText      string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrUnavailable(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Service unavailable.",
		ErrorText:      err.Error(),
	}
}

// ---- router ----

// NewRouter builds the HTTP API.
func NewRouter(src Source, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if src.Health().Health == health.HealthError {
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, "bus-off")
			return
		}
		render.PlainText(w, r, "ok")
	})

	r.Get("/ft", func(w http.ResponseWriter, r *http.Request) {
		rd := src.Snapshot()
		render.JSON(w, r, FTPayload{
			Forces:     rd.Forces,
			Torques:    rd.Torques,
			ForceNorm:  rd.ForceVec().Len(),
			TorqueNorm: rd.TorqueVec().Len(),
		})
	})

	r.Route("/bus", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			h := src.Health()
			render.JSON(w, r, BusPayload{
				Health:           h.Health,
				State:            h.State.String(),
				TxErrors:         h.TxErrors,
				RxErrors:         h.RxErrors,
				SecondsInError:   h.SecondsInError,
				BusOffCount:      h.BusOffCount,
				RecoveryFailures: h.RecoveryFailures,
				Since:            h.Since,
				Stats:            src.Stats(),
			})
		})

		r.Post("/recover", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), RecoverTimeout)
			defer cancel()

			if err := src.Recover(ctx); err != nil {
				logger.Warn("manual bus recovery failed", "err", err)
				render.Render(w, r, ErrUnavailable(err))
				return
			}
			logger.Info("manual bus recovery requested")
			render.NoContent(w, r)
		})
	})

	return r
}
