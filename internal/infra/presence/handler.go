package presence

import (
	"context"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/rs/zerolog"

	"activity-engine/internal/domain/model"
)

// Authenticate resolves a bearer token to the connecting actor.
type Authenticate func(ctx context.Context, token string) (model.Actor, error)

// Handler upgrades GET /ws?token=... and keeps the socket registered until it closes.
func Handler(reg *Registry, auth Authenticate, allowedOrigins []string, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth(r.Context(), r.URL.Query().Get("token"))
		if err != nil || actor.IsZero() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     allowedOrigins,
			InsecureSkipVerify: len(allowedOrigins) == 0,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("websocket accept")
			return
		}
		defer conn.CloseNow()

		NewClient(reg, actor.ID, conn).Run(r.Context())
		_ = conn.Close(ws.StatusNormalClosure, "")
	}
}
