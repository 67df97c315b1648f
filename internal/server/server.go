package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/propertyhub/chatserver/internal/stats"
)

const (
	metricConnections     = "NumConnections"
	metricRegisteredConns = "NumRegisteredConnections"
	metricActiveChatRooms = "NumActiveChatRooms"
	metricMessagesRelayed = "NumMessagesRelayed"
)

// registryOpTimeout bounds each presence-store call made from the event
// loop. Only the redis backend can actually block.
const registryOpTimeout = 2 * time.Second

type stopReq struct {
	done chan struct{}
}

// ChatServer runs the presence and relay core on a single event-loop
// goroutine. Client read pumps feed it through buffered channels; all
// registry and room mutation happens on the loop, so ordering between
// register/unregister and relay lookups is FIFO per connection.
type ChatServer struct {
	log         *log.Logger
	registry    *Registry
	stats       stats.StatsProvider
	rooms       *RoomManager
	relay       Relay
	clients     map[string]*Client
	clientsLock sync.Mutex

	presenceChan   chan *ClientMessage
	relayChan      chan *ClientMessage
	typingChan     chan *ClientMessage
	roomChan       chan *ClientMessage
	deregisterChan chan *Client
	stop           chan stopReq
}

func NewChatServer(logger *log.Logger, registry *Registry, su stats.StatsProvider, topology Topology) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		registry:       registry,
		stats:          su,
		clients:        make(map[string]*Client),
		presenceChan:   make(chan *ClientMessage, 256),
		relayChan:      make(chan *ClientMessage, 256),
		typingChan:     make(chan *ClientMessage, 256),
		roomChan:       make(chan *ClientMessage, 256),
		deregisterChan: make(chan *Client, 256),
		stop:           make(chan stopReq),
	}
	cs.rooms = NewRoomManager(logger, su)

	switch topology {
	case TopologyDirect, "":
		cs.relay = &directRelay{cs: cs}
	case TopologyRoom:
		cs.relay = &roomRelay{cs: cs}
	default:
		return nil, fmt.Errorf("unknown relay topology %q", topology)
	}

	for _, name := range []string{
		metricConnections,
		metricRegisteredConns,
		metricActiveChatRooms,
		metricMessagesRelayed,
	} {
		su.RegisterMetric(name)
	}

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case msg := <-cs.presenceChan:
			cs.handlePresence(msg)
		case msg := <-cs.relayChan:
			cs.handleRelay(msg)
		case msg := <-cs.typingChan:
			cs.handleTyping(msg)
		case msg := <-cs.roomChan:
			cs.handleRoom(msg)
		case client := <-cs.deregisterChan:
			cs.handleDisconnect(client)
		case req := <-cs.stop:
			cs.log.Println("stopping chat server")
			cs.stopAllClients()
			close(req.done)
			return
		}
	}
}

// RegisterClient makes a freshly upgraded connection deliverable. The
// client is not in the presence registry yet; that happens when its
// new_user event arrives.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c.connId] = c
	cs.clientsLock.Unlock()

	cs.stats.Incr(metricConnections)
	cs.log.Printf("added connection %q for user %q", c.connId, c.user.Username)
}

// DeRegisterClient removes the connection and queues loop-side cleanup
// (presence unregister, room membership).
func (cs *ChatServer) DeRegisterClient(c *Client) {
	cs.clientsLock.Lock()
	_, ok := cs.clients[c.connId]
	delete(cs.clients, c.connId)
	cs.clientsLock.Unlock()

	if !ok {
		return
	}

	cs.stats.Decr(metricConnections)
	cs.log.Printf("removed connection %q for user %q", c.connId, c.user.Username)

	select {
	case cs.deregisterChan <- c:
	default:
		cs.log.Printf("deregister channel full, dropping presence cleanup for conn %q", c.connId)
	}
}

func (cs *ChatServer) getClient(connId string) (*Client, bool) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	c, ok := cs.clients[connId]
	return c, ok
}

func (cs *ChatServer) stopAllClients() {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	for _, c := range cs.clients {
		c.stopClient()
	}
}

func (cs *ChatServer) handlePresence(msg *ClientMessage) {
	c := msg.client
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()

	if !cs.registry.Register(ctx, c.connId, c.user.Id) {
		return
	}

	cs.stats.Incr(metricRegisteredConns)
	cs.log.Printf("user %d is now online on conn %q", c.user.Id, c.connId)

	cs.broadcastOnlineUsers(ctx)
	cs.broadcastPresence(c.user.Id, true, c)
}

func (cs *ChatServer) handleDisconnect(c *Client) {
	cs.rooms.LeaveAll(c)

	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()

	userId, ok := cs.registry.Unregister(ctx, c.connId)
	if !ok {
		// connection never registered presence, nothing to announce
		return
	}

	cs.stats.Decr(metricRegisteredConns)
	cs.log.Printf("user %d disconnected from conn %q", userId, c.connId)

	cs.broadcastOnlineUsers(ctx)
	cs.broadcastPresence(userId, false, c)
}

func (cs *ChatServer) handleRelay(msg *ClientMessage) {
	if msg.SendMessage.SenderId != msg.client.user.Id {
		cs.log.Printf("conn %q: sender id %d does not match session user %d, dropping",
			msg.client.connId, msg.SendMessage.SenderId, msg.client.user.Id)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()

	cs.relay.RelayMessage(ctx, msg)
}

func (cs *ChatServer) handleTyping(msg *ClientMessage) {
	t := msg.Typing
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()

	connId, ok := cs.registry.LookupConnection(ctx, t.ReceiverId)
	if !ok {
		return
	}

	target, found := cs.getClient(connId)
	if !found {
		return
	}

	target.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
		Typing: &UserTyping{
			UserId:   t.SenderId,
			IsTyping: t.IsTyping,
		},
	})
}

func (cs *ChatServer) handleRoom(msg *ClientMessage) {
	switch {
	case msg.JoinChat != nil:
		cs.rooms.Join(msg.JoinChat.ChatId, msg.client)
	case msg.LeaveChat != nil:
		cs.rooms.Leave(msg.LeaveChat.ChatId, msg.client)
	}
}

// broadcastOnlineUsers sends the full online snapshot to every connection.
func (cs *ChatServer) broadcastOnlineUsers(ctx context.Context) {
	userIds := cs.registry.OnlineUserIds(ctx)
	cs.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		OnlineUsers: &OnlineUsers{UserIds: userIds},
	})
}

// broadcastPresence sends an incremental online/offline notice to every
// connection except the one that changed.
func (cs *ChatServer) broadcastPresence(userId int, online bool, skip *Client) {
	cs.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Presence:    &Presence{UserId: userId, Online: online},
		SkipClient:  skip,
	})
}

func (cs *ChatServer) broadcast(msg *ServerMessage) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	for _, c := range cs.clients {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

// OnlineUserCount reports the number of distinct online users, for the
// health endpoint.
func (cs *ChatServer) OnlineUserCount(ctx context.Context) int {
	return len(cs.registry.OnlineUserIds(ctx))
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
