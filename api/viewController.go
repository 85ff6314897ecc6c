package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/usecase"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// waitReady blocks until every store of view applied a snapshot, or until wait expires
func waitReady(ctx context.Context, view *usecase.View, wait time.Duration) {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	for !view.Ready() && view.Err() == nil && !view.IsClosed() {
		select {
		case <-view.Updated():
		case <-timeout.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// getView mounts tab and returns its payload
func (a *API) getView(ctx context.Context, res *common.HttpResponseWriter) error {
	view, err := a.session.Mount(usecase.ParseTab(res.VARS["tab"]))
	if err != nil {
		return res.WriteError(common.ToDetailedError(err))
	}
	waitReady(ctx, view, a.viewWait)
	return res.WriteJSON(view.Payload())
}

type wsCommand struct {
	Tab string `json:"tab"`
}

type wsSignedOut struct {
	SignedOut bool `json:"signedOut"`
}

// serveWebsocket pushes the mounted view payload on every snapshot and every
// remount. Clients switch tabs by sending {"tab": "..."}.
func (a *API) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	if a.session.User() == nil {
		a.jsonError(w, errorNotSignedIn, time.Now())
		return
	}
	if _, err := a.session.Mount(usecase.ParseTab(mux.Vars(r)["tab"])); err != nil {
		a.jsonError(w, *common.ToDetailedError(err), time.Now())
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go a.readCommands(ctx, cancel, conn)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		swapped := a.session.Swapped()
		view := a.session.View()
		var updated <-chan struct{}
		var msg interface{} = wsSignedOut{SignedOut: true}
		if view != nil {
			updated = view.Updated()
			msg = view.Payload()
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			a.logger.Debug().Err(err).Msg("websocket write failed")
			return
		}
	wait:
		for {
			select {
			case <-ctx.Done():
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			case <-updated:
				break wait
			case <-swapped:
				break wait
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func (a *API) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	conn.SetReadLimit(maxBodyBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd wsCommand
		if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Tab == "" {
			continue
		}
		if _, err := a.session.Mount(usecase.ParseTab(cmd.Tab)); err != nil {
			a.logger.Warn().Err(err).Str("tab", cmd.Tab).Msg("websocket mount failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}
