package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/service"
	"github.com/zlnvch/whiteboard/tool"
)

const (
	subprotocol = "whiteboard-v1"

	// Close frame payloads are limited to 125 bytes, two of which hold the code.
	maxCloseReason = 123
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{subprotocol},
	}
}

// ServeWS opens one board session per connection. The board is chosen with
// the board, room and name query parameters; an empty board starts a new one.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	ownerId, authErr := h.Service.AuthenticateToken(token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		closeWithReason(conn, websocket.ClosePolicyViolation, "Unauthenticated")
		return
	}

	client := NewClient(h.Hub, conn, ownerId, h.HandleWsMessage)

	query := r.URL.Query()
	runner, err := h.Service.StartSession(client.ctx, service.OpenParams{
		OwnerId: ownerId,
		BoardId: query.Get("board"),
		Name:    query.Get("name"),
		RoomId:  query.Get("room"),
	})
	if err != nil {
		log.Printf("StartSession failed for owner %s: %v", ownerId, err)
		closeWithReason(conn, websocket.CloseInternalServerErr, apperr.UserMessage(err))
		client.cancel()
		return
	}
	client.runner = runner

	h.Hub.OpenCh <- client

	// Start the session and pumps
	go runner.Run(client.ctx)
	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

func closeWithReason(conn *websocket.Conn, code int, reason string) {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	conn.Close()
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type toolMessage struct {
	Tool tool.Tool `json:"tool"`
}

type styleMessage struct {
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	FontSize float64 `json:"fontSize"`
}

type textMessage struct {
	Text string `json:"text"`
}

type renameMessage struct {
	Name string `json:"name"`
}

type dialogMessage struct {
	Open bool `json:"open"`
}

var errBinaryMessage = errors.New("binary messages are not accepted")

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	if messageType != websocket.TextMessage {
		log.Printf("Dropping message from owner %s: %v", client.ownerId, errBinaryMessage)
		return
	}

	in, err := parseInput(messageBytes)
	if err != nil {
		log.Printf("Invalid ws message: %v", err)
		return
	}

	if !client.runner.Post(in) {
		log.Printf("Session for board %s already closed, dropping %s", client.runner.BoardId(), in.Type)
	}
}

// parseInput decodes one client message into a session input.
func parseInput(messageBytes []byte) (service.Input, error) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return service.Input{}, fmt.Errorf("invalid JSON: %w", err)
	}

	in := service.Input{Type: service.InputType(msg.Type)}
	var err error

	switch in.Type {
	case service.InputPointerDown, service.InputPointerMove, service.InputPointerUp, service.InputPointerCancel:
		err = decodeData(msg.Data, &in.Pointer)

	case service.InputWheel:
		err = decodeData(msg.Data, &in.Wheel)

	case service.InputKey:
		err = decodeData(msg.Data, &in.Key)

	case service.InputSetTool:
		var toolMsg toolMessage
		err = decodeData(msg.Data, &toolMsg)
		in.Tool = toolMsg.Tool

	case service.InputSetStyle:
		var styleMsg styleMessage
		err = decodeData(msg.Data, &styleMsg)
		in.Style = tool.Style{Color: styleMsg.Color, Width: styleMsg.Width, FontSize: styleMsg.FontSize}

	case service.InputResize:
		err = decodeData(msg.Data, &in.Resize)

	case service.InputUpdateText:
		var textMsg textMessage
		err = decodeData(msg.Data, &textMsg)
		in.Text = textMsg.Text

	case service.InputCommitText, service.InputCancelText:
		// No payload

	case service.InputDropSticker:
		err = decodeData(msg.Data, &in.Sticker)

	case service.InputInsertImage:
		err = decodeData(msg.Data, &in.Image)

	case service.InputRename:
		var renameMsg renameMessage
		err = decodeData(msg.Data, &renameMsg)
		in.Text = renameMsg.Name

	case service.InputDialog:
		var dialogMsg dialogMessage
		err = decodeData(msg.Data, &dialogMsg)
		in.Dialog = dialogMsg.Open

	case service.InputExit:
		err = decodeData(msg.Data, &in.Exit)

	default:
		return service.Input{}, fmt.Errorf("unknown message type: %q", msg.Type)
	}

	if err != nil {
		return service.Input{}, fmt.Errorf("invalid %s data: %w", msg.Type, err)
	}
	return in, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}
