package ws

import (
	"context"
	"log"

	"github.com/zlnvch/whiteboard/cache"
)

type ownerMessage struct {
	ownerId string
	message []byte
}

// Hub maintains the set of active clients per owner and relays each
// owner's save notifications to all of their connections.
type Hub struct {
	whiteboardCache         cache.WhiteboardCache
	OpenCh                  chan *Client
	CloseCh                 chan *Client
	BroadcastCh             chan ownerMessage
	ownerToClients          map[string]map[*Client]struct{}
	ownerToSubscriberCancel map[string]context.CancelFunc
}

func NewHub(whiteboardCache cache.WhiteboardCache) *Hub {
	return &Hub{
		whiteboardCache:         whiteboardCache,
		OpenCh:                  make(chan *Client, 256),
		CloseCh:                 make(chan *Client, 256),
		BroadcastCh:             make(chan ownerMessage, 1024),
		ownerToClients:          make(map[string]map[*Client]struct{}),
		ownerToSubscriberCancel: make(map[string]context.CancelFunc),
	}
}

const maxConnectionsPerOwner = 3

func (h *Hub) Run(shutdownCtx context.Context) {
	for {
		select {
		case client := <-h.OpenCh:
			clients, ok := h.ownerToClients[client.ownerId]
			if !ok {
				clients = make(map[*Client]struct{})
			}

			if len(clients) >= maxConnectionsPerOwner {
				log.Printf("Owner %s reached max connections (%d)", client.ownerId, maxConnectionsPerOwner)
				close(client.Send)
				continue
			}

			if !ok {
				h.subscribe(client.ownerId)
				h.ownerToClients[client.ownerId] = clients
			}
			clients[client] = struct{}{}

		case client := <-h.CloseCh:
			clients, ok := h.ownerToClients[client.ownerId]
			if !ok {
				continue
			}
			delete(clients, client)
			if len(clients) == 0 {
				if cancel, ok := h.ownerToSubscriberCancel[client.ownerId]; ok {
					cancel()
					delete(h.ownerToSubscriberCancel, client.ownerId)
				}
				delete(h.ownerToClients, client.ownerId)
			}

		case msg := <-h.BroadcastCh:
			for client := range h.ownerToClients[msg.ownerId] {
				select {
				case client.Send <- msg.message:
				default:
					log.Printf("Dropping notification for slow client of owner %s", msg.ownerId)
				}
			}

		case <-shutdownCtx.Done():
			for _, cancel := range h.ownerToSubscriberCancel {
				cancel()
			}
			return
		}
	}
}

// subscribe relays the owner's boards channel into BroadcastCh. A failed
// subscription only costs the notifications.
func (h *Hub) subscribe(ownerId string) {
	if h.whiteboardCache == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	channel := cache.BoardsChannel(ownerId)

	err := h.whiteboardCache.Subscribe(ctx, channel, func(messageBytes []byte) {
		h.BroadcastCh <- ownerMessage{ownerId: ownerId, message: messageBytes}
	})
	if err != nil {
		log.Printf("Failed to create redis sub for channel %s: %v", channel, err)
		cancel()
		return
	}
	h.ownerToSubscriberCancel[ownerId] = cancel
}
