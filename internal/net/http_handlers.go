package net

import (
	"context"
	"encoding/json"
	"io"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"drift-and-dredge/server"
	"drift-and-dredge/server/internal/observability"
	"drift-and-dredge/server/internal/telemetry"
	"drift-and-dredge/server/logging"
	lognetwork "drift-and-dredge/server/logging/network"
)

type HTTPHandlerConfig struct {
	ClientDir     string
	Logger        telemetry.Logger
	Publisher     logging.Publisher
	Metrics       *logging.Metrics
	Observability observability.Config
}

type clientMessage struct {
	Ver        int                  `json:"ver,omitempty"`
	Type       string               `json:"type"`
	SentAt     int64                `json:"sentAt"`
	Kiosk      string               `json:"kiosk"`
	Slots      int                  `json:"slots"`
	Patch      *server.LoadoutPatch `json:"patch"`
	CommandSeq *uint64              `json:"seq,omitempty"`
}

type commandAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Tick uint64 `json:"tick,omitempty"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
	Tick   uint64 `json:"tick,omitempty"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	publisher := cfg.Publisher

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			RunID      string            `json:"runId"`
			Tick       uint64            `json:"tick"`
			Sessions   any               `json:"sessions"`
			TickRate   int               `json:"tickRate"`
			Heartbeat  int64             `json:"heartbeatMillis"`
			Telemetry  any               `json:"telemetry"`
			Journal    any               `json:"journal"`
			Counters   map[string]uint64 `json:"counters,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			RunID:      hub.RunID(),
			Tick:       hub.Tick(),
			Sessions:   hub.DiagnosticsSnapshot(),
			TickRate:   hub.TickRate(),
			Heartbeat:  server.HeartbeatInterval().Milliseconds(),
			Telemetry:  hub.TelemetrySnapshot(),
			Journal:    hub.JournalStats(),
			Counters:   cfg.Metrics.Snapshot(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/world/reset", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		cfg := hub.CurrentConfig()

		type resetRequest struct {
			Seed               *string  `json:"seed"`
			RareBiomeThreshold *float64 `json:"rareBiomeThreshold"`
			DeepBiomeThreshold *float64 `json:"deepBiomeThreshold"`
			PityWindow         *int     `json:"pityWindow"`
			EventPityStep      *float64 `json:"eventPityStep"`
		}

		if r.Body != nil {
			defer r.Body.Close()
			var req resetRequest
			decoder := json.NewDecoder(r.Body)
			if err := decoder.Decode(&req); err != nil && err != io.EOF {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
			if req.Seed != nil {
				cfg.Seed = *req.Seed
			}
			if req.RareBiomeThreshold != nil {
				cfg.RareBiomeThreshold = *req.RareBiomeThreshold
			}
			if req.DeepBiomeThreshold != nil {
				cfg.DeepBiomeThreshold = *req.DeepBiomeThreshold
			}
			if req.PityWindow != nil {
				cfg.PityWindow = *req.PityWindow
			}
			if req.EventPityStep != nil {
				cfg.EventPityStep = *req.EventPityStep
			}
		}

		if err := hub.ResetWorld(cfg); err != nil {
			logger.Printf("world reset failed: %v", err)
			httpError(w, "reset failed", nethttp.StatusInternalServerError)
			return
		}
		go hub.BroadcastSnapshot()

		response := struct {
			Status string `json:"status"`
			RunID  string `json:"runId"`
			Config any    `json:"config"`
		}{
			Status: "ok",
			RunID:  hub.RunID(),
			Config: hub.CurrentConfig(),
		}

		data, err := json.Marshal(response)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		join := hub.Join()
		data, err := json.Marshal(join)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/catalog", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		payload := struct {
			Biomes any `json:"biomes"`
			Events any `json:"events"`
			Loot   any `json:"loot"`
			Kiosks any `json:"kiosks"`
		}{
			Biomes: hub.BiomeCatalog(),
			Events: hub.EventCatalog(),
			Loot:   hub.LootCatalog(),
			Kiosks: hub.Kiosks(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		playerID := r.URL.Query().Get("id")
		if playerID == "" {
			httpError(w, "missing id", nethttp.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", playerID, err)
			lognetwork.UpgradeFailed(context.Background(), publisher, hub.Tick(), logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer}, lognetwork.UpgradeFailedPayload{
				RemoteAddr: r.RemoteAddr,
				Error:      err.Error(),
			}, nil)
			return
		}

		sub, ok := hub.Subscribe(playerID, conn)
		if !ok {
			message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
			conn.WriteMessage(websocket.CloseMessage, message)
			conn.Close()
			return
		}

		data, err := hub.MarshalSnapshot()
		if err != nil {
			logger.Printf("failed to marshal initial state for %s: %v", playerID, err)
			hub.Disconnect(playerID)
			return
		}
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			hub.Disconnect(playerID)
			return
		}
		hub.RecordTelemetryBroadcast(len(data), 1)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				hub.Disconnect(playerID)
				return
			}

			var msg clientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Printf("discarding malformed message from %s: %v", playerID, err)
				continue
			}

			normalizedSeq := uint64(0)
			if msg.CommandSeq != nil && *msg.CommandSeq > 0 {
				normalizedSeq = *msg.CommandSeq
			}

			writeJSON := func(payload any) bool {
				data, err := json.Marshal(payload)
				if err != nil {
					logger.Printf("failed to marshal response for %s: %v", playerID, err)
					return true
				}
				if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.Disconnect(playerID)
					return false
				}
				return true
			}

			sendDuplicateAck := func() bool {
				if normalizedSeq == 0 {
					return true
				}
				ack := commandAckMessage{Ver: server.ProtocolVersion, Type: "commandAck", Seq: normalizedSeq}
				return writeJSON(ack)
			}

			sendCommandAck := func(cmd server.Command) bool {
				if normalizedSeq == 0 {
					return true
				}
				ack := commandAckMessage{Ver: server.ProtocolVersion, Type: "commandAck", Seq: normalizedSeq}
				if cmd.OriginTick > 0 {
					ack.Tick = cmd.OriginTick
				}
				if !writeJSON(ack) {
					return false
				}
				sub.StoreLastCommandSeq(normalizedSeq)
				return true
			}

			sendCommandReject := func(reason string, retry bool) bool {
				if normalizedSeq == 0 {
					return true
				}
				reject := commandRejectMessage{
					Ver:    server.ProtocolVersion,
					Type:   "commandReject",
					Seq:    normalizedSeq,
					Reason: reason,
				}
				if retry {
					reject.Retry = true
				}
				return writeJSON(reject)
			}

			switch msg.Type {
			case "dredge":
				if normalizedSeq > 0 {
					if last := sub.LastCommandSeq(); last > 0 && normalizedSeq <= last {
						if !sendDuplicateAck() {
							return
						}
						continue
					}
				}
				cmd, ok, reason := hub.QueueDredge(playerID)
				if normalizedSeq > 0 {
					if ok {
						if !sendCommandAck(cmd) {
							return
						}
					} else {
						retry := reason == server.CommandRejectQueueLimit || reason == server.CommandRejectQueueFull
						if !sendCommandReject(reason, retry) {
							return
						}
					}
				}
				if !ok && reason == server.CommandRejectUnknownActor {
					logger.Printf("dredge ignored for unknown player %s", playerID)
				}
			case "advance":
				if normalizedSeq > 0 {
					if last := sub.LastCommandSeq(); last > 0 && normalizedSeq <= last {
						if !sendDuplicateAck() {
							return
						}
						continue
					}
				}
				cmd, ok, reason := hub.QueueAdvance(playerID)
				if normalizedSeq > 0 {
					if ok {
						if !sendCommandAck(cmd) {
							return
						}
					} else {
						retry := reason == server.CommandRejectQueueLimit || reason == server.CommandRejectQueueFull
						if !sendCommandReject(reason, retry) {
							return
						}
					}
				}
				if !ok && reason == server.CommandRejectUnknownActor {
					logger.Printf("advance ignored for unknown player %s", playerID)
				}
			case "configure":
				if msg.Patch == nil {
					continue
				}
				if normalizedSeq > 0 {
					if last := sub.LastCommandSeq(); last > 0 && normalizedSeq <= last {
						if !sendDuplicateAck() {
							return
						}
						continue
					}
				}
				cmd, ok, reason := hub.QueueConfigure(playerID, *msg.Patch)
				if normalizedSeq > 0 {
					if ok {
						if !sendCommandAck(cmd) {
							return
						}
					} else {
						retry := reason == server.CommandRejectQueueLimit || reason == server.CommandRejectQueueFull
						if !sendCommandReject(reason, retry) {
							return
						}
					}
				}
				if !ok && reason == server.CommandRejectUnknownActor {
					logger.Printf("configure ignored for unknown player %s", playerID)
				}
			case "restock":
				if msg.Kiosk == "" {
					continue
				}
				if normalizedSeq > 0 {
					if last := sub.LastCommandSeq(); last > 0 && normalizedSeq <= last {
						if !sendDuplicateAck() {
							return
						}
						continue
					}
				}
				cmd, ok, reason := hub.QueueRestock(playerID, msg.Kiosk, msg.Slots)
				if normalizedSeq > 0 {
					if ok {
						if !sendCommandAck(cmd) {
							return
						}
					} else {
						retry := reason == server.CommandRejectQueueLimit || reason == server.CommandRejectQueueFull
						if !sendCommandReject(reason, retry) {
							return
						}
					}
				}
				if !ok {
					if reason == server.CommandRejectInvalidKiosk {
						logger.Printf("unknown kiosk %q from %s", msg.Kiosk, playerID)
					} else if reason == server.CommandRejectUnknownActor {
						logger.Printf("restock ignored for unknown player %s", playerID)
					}
				}
			case "heartbeat":
				now := time.Now()
				rtt, ok := hub.UpdateHeartbeat(playerID, now, msg.SentAt)
				if !ok {
					continue
				}

				ack := heartbeatMessage{
					Ver:        server.ProtocolVersion,
					Type:       "heartbeat",
					ServerTime: now.UnixMilli(),
					ClientTime: msg.SentAt,
					RTTMillis:  rtt.Milliseconds(),
				}

				data, err := json.Marshal(ack)
				if err != nil {
					logger.Printf("failed to marshal heartbeat ack for %s: %v", playerID, err)
					continue
				}

				if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.Disconnect(playerID)
					return
				}
			default:
				logger.Printf("unknown message type %q from %s", msg.Type, playerID)
			}
		}
	})

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	observability.Mount(mux, cfg.Observability)

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
