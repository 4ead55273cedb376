package sse

import (
	"context"
	"ms-booking/internal/models"
	"sync"
)

const subscriberBuffer = 10

// InventoryEmitter fans committed inventory changes out to the SSE clients
// watching each event.
type InventoryEmitter struct {
	// key: eventID, value: client channels
	eventClients     map[string][]chan models.InventoryUpdate
	eventClientMutex sync.RWMutex
}

func NewInventoryEmitter() *InventoryEmitter {
	return &InventoryEmitter{
		eventClients: make(map[string][]chan models.InventoryUpdate),
	}
}

// Subscribe registers a client for eventID. The channel is closed and removed
// once ctx is done.
func (e *InventoryEmitter) Subscribe(ctx context.Context, eventID string) <-chan models.InventoryUpdate {
	clientChan := make(chan models.InventoryUpdate, subscriberBuffer)

	e.eventClientMutex.Lock()
	e.eventClients[eventID] = append(e.eventClients[eventID], clientChan)
	e.eventClientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(eventID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts update to the event's subscribers. Clients whose buffer is
// full miss the update.
func (e *InventoryEmitter) Emit(update models.InventoryUpdate) {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()

	for _, clientChan := range e.eventClients[update.EventID] {
		select {
		case clientChan <- update:
		default:
		}
	}
}

func (e *InventoryEmitter) removeClient(eventID string, clientChan chan models.InventoryUpdate) {
	e.eventClientMutex.Lock()
	defer e.eventClientMutex.Unlock()

	clients := e.eventClients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.eventClients[eventID] = append(clients[:i:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.eventClients[eventID]) == 0 {
		delete(e.eventClients, eventID)
	}
}

func (e *InventoryEmitter) ClientCount(eventID string) int {
	e.eventClientMutex.RLock()
	defer e.eventClientMutex.RUnlock()
	return len(e.eventClients[eventID])
}
