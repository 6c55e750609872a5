package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, the layer stays silent.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// logEnd records the outcome of one RPC operation.
func logEnd(r *http.Request, op string, status int, start time.Time, err error) {
	if zlog == nil {
		return
	}
	var ev *zerolog.Event
	if err != nil {
		ev = zlog.Warn().Err(err)
	} else {
		ev = zlog.Info()
	}
	ev = ev.Str("op", op).Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg("rpc end")
}
