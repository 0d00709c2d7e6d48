package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/giftry/shophook/internal/xerrors"
	"github.com/giftry/shophook/internal/xhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealth reports readiness, including the shared store the pipeline
// depends on.
func NewHealth(backend Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := backend.Ping(ctx); err != nil {
			xerrors.WriteError(ctx, w, xerrors.ServiceUnavailable(
				xerrors.WithReason("store_unavailable"),
				xerrors.WithCause(err),
			))
			return
		}

		xhttp.WriteOK(w, statusResponse{Status: "ok"})
	}
}
