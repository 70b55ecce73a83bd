// Package services holds the domain operations shared by the HTTP handlers, the
// websocket endpoint and the cron jobs. Every service is built once at startup.
package services

import (
	"github.com/google/uuid"
)

// Emitter pushes real-time events to connected clients. *websocket.Hub satisfies it.
type Emitter interface {
	SendToUser(userID uuid.UUID, event string, data interface{})
	SendToRole(role string, event string, data interface{})
	SendToRoom(room string, event string, data interface{})
	SendToRoomExcept(room string, except uuid.UUID, event string, data interface{})
}

type nopEmitter struct{}

func (nopEmitter) SendToUser(uuid.UUID, string, interface{})                {}
func (nopEmitter) SendToRole(string, string, interface{})                   {}
func (nopEmitter) SendToRoom(string, string, interface{})                   {}
func (nopEmitter) SendToRoomExcept(string, uuid.UUID, string, interface{}) {}

func emitterOrNop(e Emitter) Emitter {
	if e == nil {
		return nopEmitter{}
	}
	return e
}

