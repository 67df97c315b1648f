package server

import (
	"log"

	"github.com/propertyhub/chatserver/internal/stats"
)

// RoomManager groups connections by chat id for scoped broadcast. It is
// owned by the ChatServer and only ever touched on the event loop, so no
// locking is needed.
type RoomManager struct {
	log      *log.Logger
	stats    stats.StatsProvider
	rooms    map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
}

func NewRoomManager(logger *log.Logger, su stats.StatsProvider) *RoomManager {
	return &RoomManager{
		log:      logger,
		stats:    su,
		rooms:    make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

func (rm *RoomManager) Join(chatId string, c *Client) {
	if rm.rooms[chatId] == nil {
		rm.rooms[chatId] = make(map[*Client]struct{})
		rm.stats.Incr(metricActiveChatRooms)
	}
	rm.rooms[chatId][c] = struct{}{}

	if rm.byClient[c] == nil {
		rm.byClient[c] = make(map[string]struct{})
	}
	rm.byClient[c][chatId] = struct{}{}

	rm.log.Printf("conn %q joined chat %q", c.connId, chatId)
}

func (rm *RoomManager) Leave(chatId string, c *Client) {
	members, ok := rm.rooms[chatId]
	if !ok {
		return
	}

	delete(members, c)
	if len(members) == 0 {
		delete(rm.rooms, chatId)
		rm.stats.Decr(metricActiveChatRooms)
	}

	if chats, ok := rm.byClient[c]; ok {
		delete(chats, chatId)
		if len(chats) == 0 {
			delete(rm.byClient, c)
		}
	}

	rm.log.Printf("conn %q left chat %q", c.connId, chatId)
}

func (rm *RoomManager) LeaveAll(c *Client) {
	for chatId := range rm.byClient[c] {
		rm.Leave(chatId, c)
	}
}

// Broadcast queues msg to every member of the chat's group except skip.
// Returns the number of deliveries.
func (rm *RoomManager) Broadcast(chatId string, msg *ServerMessage, skip *Client) int {
	var delivered int
	for member := range rm.rooms[chatId] {
		if member == skip {
			continue
		}
		if member.queueMessage(msg) {
			delivered++
		}
	}

	return delivered
}
