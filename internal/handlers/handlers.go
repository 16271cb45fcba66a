// Package handlers provides the HTTP and websocket surface of the
// bridge server. Routes are thin; everything of substance lives behind
// the bridge API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/krishahir26/antibridge/internal/actions"
	"github.com/krishahir26/antibridge/internal/bridge"
	"github.com/krishahir26/antibridge/internal/config"
	"github.com/krishahir26/antibridge/internal/web"
)

type Handlers struct {
	Bridge bridge.API
	Config *config.RuntimeConfig
}

func New(b bridge.API, cfg *config.RuntimeConfig) *Handlers {
	return &Handlers{Bridge: b, Config: cfg}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux, doShutdown func()) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("POST /connect", h.HandleConnect)
	mux.HandleFunc("POST /disconnect", h.HandleDisconnect)
	mux.HandleFunc("POST /poll/start", h.HandlePollStart)
	mux.HandleFunc("POST /poll/stop", h.HandlePollStop)
	mux.HandleFunc("POST /send", h.HandleSend)
	mux.HandleFunc("POST /command", h.HandleCommand)
	mux.HandleFunc("GET /actions", h.HandleActions)
	mux.HandleFunc("POST /actions/{id}/accept", h.HandleActionAccept)
	mux.HandleFunc("POST /actions/{id}/reject", h.HandleActionReject)
	mux.HandleFunc("GET /history", h.HandleHistory)
	mux.HandleFunc("DELETE /history", h.HandleHistoryClear)
	mux.HandleFunc("POST /history/settings", h.HandleHistorySettings)
	mux.HandleFunc("GET /sessions", h.HandleSessions)
	mux.HandleFunc("POST /sessions", h.HandleSessionCreate)

	mux.HandleFunc("GET /ws/extension", h.HandleWS(roleExtension))
	mux.HandleFunc("GET /ws/action-bridge", h.HandleWS(roleAction))
	mux.HandleFunc("GET /ws/bridge", h.HandleWS(roleAutomation))
	mux.HandleFunc("GET /ws/{session_id}", h.HandleWS(roleSession))

	if doShutdown != nil {
		mux.HandleFunc("POST /shutdown", func(w http.ResponseWriter, r *http.Request) {
			web.JSON(w, 200, map[string]string{"status": "shutting down"})
			go doShutdown()
		})
	}
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{
		"status":     "ok",
		"connection": string(h.Bridge.ConnectionState()),
		"debugUrl":   h.Config.DebugURL,
	})
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, h.Bridge.State(r.Context()))
}

func (h *Handlers) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if !h.Bridge.Connect(r.Context()) {
		web.Error(w, 502, fmt.Errorf("could not attach to %s", h.Config.DebugURL))
		return
	}
	web.JSON(w, 200, map[string]string{"status": string(h.Bridge.ConnectionState())})
}

func (h *Handlers) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.Bridge.Disconnect()
	web.JSON(w, 200, map[string]string{"status": string(h.Bridge.ConnectionState())})
}

func (h *Handlers) HandlePollStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID  string `json:"sessionId"`
		IntervalMs int    `json:"intervalMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, 400, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.SessionID == "" {
		web.Error(w, 400, errors.New("sessionId is required"))
		return
	}

	h.Bridge.StartPolling(req.SessionID, time.Duration(req.IntervalMs)*time.Millisecond)
	web.JSON(w, 200, map[string]any{"status": "polling", "sessionId": req.SessionID})
}

func (h *Handlers) HandlePollStop(w http.ResponseWriter, r *http.Request) {
	h.Bridge.StopPolling()
	web.JSON(w, 200, map[string]string{"status": "stopped"})
}

func (h *Handlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, 400, fmt.Errorf("decode request: %w", err))
		return
	}

	method, err := h.Bridge.SendOutbound(r.Context(), req.SessionID, req.Text)
	if err != nil {
		web.Error(w, 502, err)
		return
	}
	web.JSON(w, 200, map[string]string{"status": "sent", "method": method})
}

func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
		Arg  string `json:"arg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, 400, fmt.Errorf("decode request: %w", err))
		return
	}

	if err := h.Bridge.SendUICommand(r.Context(), req.Kind, req.Arg); err != nil {
		code := 502
		if errors.Is(err, bridge.ErrUnknownCommand) {
			code = 400
		}
		web.Error(w, code, err)
		return
	}
	web.JSON(w, 200, map[string]string{"status": "ok", "kind": req.Kind})
}

func (h *Handlers) HandleActions(w http.ResponseWriter, r *http.Request) {
	pending := h.Bridge.PendingActions()
	if pending == nil {
		pending = []*actions.Action{}
	}
	web.JSON(w, 200, map[string]any{"actions": pending})
}

func (h *Handlers) HandleActionAccept(w http.ResponseWriter, r *http.Request) {
	h.decideAction(w, r, true)
}

func (h *Handlers) HandleActionReject(w http.ResponseWriter, r *http.Request) {
	h.decideAction(w, r, false)
}

func (h *Handlers) decideAction(w http.ResponseWriter, r *http.Request, accept bool) {
	id := r.PathValue("id")
	action, err := h.Bridge.DecideAction(r.Context(), id, accept)
	if err != nil {
		if errors.Is(err, actions.ErrNotFound) {
			web.Error(w, 404, err)
			return
		}
		web.Error(w, 502, err)
		return
	}
	web.JSON(w, 200, map[string]any{"action": action})
}

func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Bridge.History().Recent(h.Config.HistoryMax)
	if err != nil {
		web.Error(w, 500, err)
		return
	}
	web.JSON(w, 200, map[string]any{"messages": entries})
}

func (h *Handlers) HandleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := h.Bridge.History().Clear(); err != nil {
		web.Error(w, 500, err)
		return
	}
	web.JSON(w, 200, map[string]string{"status": "cleared"})
}

func (h *Handlers) HandleHistorySettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxEntries int `json:"maxEntries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, 400, fmt.Errorf("decode request: %w", err))
		return
	}
	h.Bridge.History().SetMaxEntries(req.MaxEntries)
	web.JSON(w, 200, map[string]any{"status": "ok", "maxEntries": req.MaxEntries})
}

func (h *Handlers) HandleSessions(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, map[string]any{"sessions": h.Bridge.Sessions().List()})
}

func (h *Handlers) HandleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.Error(w, 400, fmt.Errorf("decode request: %w", err))
		return
	}
	sess := h.Bridge.Sessions().Create(req.Key)
	web.JSON(w, 201, map[string]any{"session": sess})
}
