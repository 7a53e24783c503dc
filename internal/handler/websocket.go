package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"calmap/internal/buildings"
	"calmap/internal/domain"
)

// WSHandler serves interactive map panning over a websocket: the client
// sends its viewport bbox as it moves, and each message is answered with
// the zone pipeline's feature list. One outbound fetch per inbound
// message; there is no server-side push.
type WSHandler struct {
	service *buildings.Service
	logger  *slog.Logger
}

func NewWSHandler(service *buildings.Service, logger *slog.Logger) *WSHandler {
	return &WSHandler{service: service, logger: logger}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type viewportPayload struct {
	BBox domain.BoundingBox `json:"bbox"`
}

type buildingsMessage struct {
	Type    string           `json:"type"`
	Payload buildingsPayload `json:"payload"`
}

type buildingsPayload struct {
	BBox      domain.BoundingBox `json:"bbox"`
	Buildings []domain.Feature   `json:"buildings"`
	Total     int                `json:"total"`
}

type wsErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	h.logger.Debug("viewport client connected", "client_id", clientID)

	h.serve(r.Context(), conn, clientID)
}

func (h *WSHandler) serve(ctx context.Context, conn *websocket.Conn, clientID string) {
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", clientID, "error", err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", clientID, "error", err)
			continue
		}

		switch msg.Type {
		case "viewport":
			h.handleViewport(ctx, conn, clientID, msg.Payload)
		case "ping":
			h.write(ctx, conn, wsMessage{Type: "pong"})
		}
	}
}

func (h *WSHandler) handleViewport(ctx context.Context, conn *websocket.Conn, clientID string, payload json.RawMessage) {
	var viewport viewportPayload
	if err := json.Unmarshal(payload, &viewport); err != nil {
		h.write(ctx, conn, wsErrorMessage{Type: "error", Error: "invalid viewport payload"})
		return
	}
	if err := viewport.BBox.Validate(); err != nil {
		h.write(ctx, conn, wsErrorMessage{Type: "error", Error: err.Error()})
		return
	}

	features := h.service.FetchZoneBBox(ctx, viewport.BBox)

	h.write(ctx, conn, buildingsMessage{
		Type: "buildings",
		Payload: buildingsPayload{
			BBox:      viewport.BBox,
			Buildings: features,
			Total:     len(features),
		},
	})
	h.logger.Debug("viewport served",
		"client_id", clientID,
		"bbox", viewport.BBox.String(),
		"buildings", len(features),
	)
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
	}
}
