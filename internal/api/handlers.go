package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/propertyhub/chatserver/internal/database"
	"github.com/propertyhub/chatserver/internal/server"
	"github.com/propertyhub/chatserver/internal/types"
)

const (
	maxMessageLength = 1000
	defaultPageLimit = 50
	maxChatMessages  = 500
)

type AddChatRequest struct {
	ReceiverId int `json:"receiver_id"`
}

type AddMessageRequest struct {
	Text string `json:"text"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type MessagesResponse struct {
	Messages   []types.Message `json:"messages"`
	Pagination Pagination      `json:"pagination"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	UptimeMs    int64     `json:"uptime_ms"`
	OnlineUsers int       `json:"online_users"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func hasParticipant(chat database.Chat, userId int) bool {
	for _, p := range chat.Participants {
		if p.UserId == userId {
			return true
		}
	}
	return false
}

func otherParticipant(chat database.Chat, userId int) (database.Participant, bool) {
	for _, p := range chat.Participants {
		if p.UserId != userId {
			return p, true
		}
	}
	return database.Participant{}, false
}

func seenByIds(chat database.Chat) []int {
	var ids []int
	for _, p := range chat.Participants {
		if p.Seen {
			ids = append(ids, p.UserId)
		}
	}
	return ids
}

func participantIds(chat database.Chat) []int {
	ids := make([]int, len(chat.Participants))
	for i, p := range chat.Participants {
		ids[i] = p.UserId
	}
	return ids
}

func chatToType(chat database.Chat, receiver *types.User, unread int) types.Chat {
	c := types.Chat{
		ExternalId:   chat.ExternalId,
		Participants: participantIds(chat),
		Receiver:     receiver,
		SeenBy:       seenByIds(chat),
		LastMessage:  chat.LastMessage,
		UnreadCount:  unread,
		CreatedAt:    chat.CreatedAt,
		UpdatedAt:    chat.UpdatedAt,
	}
	if chat.LastMessageAt.Valid {
		c.LastMessageAt = chat.LastMessageAt.Time
	}
	return c
}

func messageToType(m database.Message, chatExternalId string, sender *types.User) types.Message {
	return types.Message{
		Id:        m.Id,
		ChatId:    chatExternalId,
		UserId:    m.UserId,
		Sender:    sender,
		Text:      m.Text,
		IsRead:    m.IsRead,
		Timestamp: m.CreatedAt,
	}
}

func (s *ChatApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:        user.Id,
		Username:  user.Username,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

func (s *ChatApp) getChats(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbChats, err := s.db.ListChats(userId)
	if err != nil {
		s.log.Println("list chats:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chats := make([]types.Chat, 0, len(dbChats))
	for _, dbChat := range dbChats {
		var receiver *types.User
		if p, ok := otherParticipant(dbChat, userId); ok {
			receiver = &types.User{
				Id:       p.UserId,
				Username: p.Username,
				Avatar:   p.Avatar,
			}
		}

		unread, err := s.db.UnreadCount(dbChat.Id, userId)
		if err != nil {
			s.log.Println("unread count:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		chats = append(chats, chatToType(dbChat, receiver, unread))
	}

	s.writeJson(w, http.StatusOK, chats)
}

// getChat returns a chat with its ordered messages. Opening a chat the
// requester has not seen marks its messages read and appends the
// requester to the seen set. A message arriving mid-operation may be
// counted unread until the next open; that race is accepted.
func (s *ChatApp) getChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, apiErr := s.chatForRequester(r.PathValue("id"), userId)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	seen := false
	for _, p := range chat.Participants {
		if p.UserId == userId && p.Seen {
			seen = true
		}
	}

	if !seen {
		if err := s.db.MarkMessagesRead(chat.Id, userId); err != nil {
			s.log.Println("mark messages read:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if err := s.db.AddSeenBy(chat.Id, userId); err != nil {
			s.log.Println("add seen by:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		for i := range chat.Participants {
			if chat.Participants[i].UserId == userId {
				chat.Participants[i].Seen = true
			}
		}
	}

	dbMessages, err := s.db.GetMessages(chat.Id, 0, maxChatMessages)
	if err != nil {
		s.log.Println("get messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	senders := make(map[int]*types.User, len(chat.Participants))
	for _, p := range chat.Participants {
		senders[p.UserId] = &types.User{Id: p.UserId, Username: p.Username, Avatar: p.Avatar}
	}

	var receiver *types.User
	if p, ok := otherParticipant(chat, userId); ok {
		receiver = senders[p.UserId]
	}

	resp := chatToType(chat, receiver, 0)
	resp.Messages = make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		msg := messageToType(m, chat.ExternalId, senders[m.UserId])
		if m.UserId != userId {
			// just marked read above
			msg.IsRead = true
		}
		resp.Messages = append(resp.Messages, msg)
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *ChatApp) addChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.ReceiverId == 0 || req.ReceiverId == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetUserById(req.ReceiverId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	existing, err := s.db.GetChatByParticipants(userId, req.ReceiverId)
	if err == nil {
		s.writeJson(w, http.StatusOK, chatToType(existing, nil, 0))
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newChat, err := s.db.CreateChat(database.CreateChatParams{
		ExternalId: externalId,
		UserIds:    [2]int{userId, req.ReceiverId},
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, chatToType(newChat, nil, 0))
}

// readChat is the explicit mark-read action. The seen set is overwritten
// to just the requester, not unioned; see ChatRepository.ResetSeenBy.
func (s *ChatApp) readChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, apiErr := s.chatForRequester(r.PathValue("id"), userId)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	if err := s.db.MarkMessagesRead(chat.Id, userId); err != nil {
		s.log.Println("mark messages read:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.ResetSeenBy(chat.Id, userId); err != nil {
		s.log.Println("reset seen by:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	for i := range chat.Participants {
		chat.Participants[i].Seen = chat.Participants[i].UserId == userId
	}

	s.writeJson(w, http.StatusOK, chatToType(chat, nil, 0))
}

func (s *ChatApp) deleteChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, apiErr := s.chatForRequester(r.PathValue("id"), userId)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	if err := s.db.DeleteChat(chat.Id); err != nil {
		s.log.Println("delete chat:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) addMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" || len(text) > maxMessageLength {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, apiErr := s.chatForRequester(r.PathValue("chatId"), userId)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	msg, err := s.db.CreateMessage(database.Message{
		ChatId:    chat.Id,
		UserId:    userId,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Println("create message:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateChatOnMessage(chat.Id, userId, text); err != nil {
		s.log.Println("update chat on message:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var sender *types.User
	if u, err := s.db.GetUserById(userId); err == nil {
		sender = &types.User{Id: u.Id, Username: u.Username, Avatar: u.Avatar}
	}

	s.writeJson(w, http.StatusCreated, messageToType(msg, chat.ExternalId, sender))
}

func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, apiErr := s.chatForRequester(r.PathValue("chatId"), userId)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	page := 1
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		var err error
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	limit := defaultPageLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbMessages, err := s.db.GetMessages(chat.Id, (page-1)*limit, limit)
	if err != nil {
		s.log.Println("get messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	total, err := s.db.CountMessages(chat.Id)
	if err != nil {
		s.log.Println("count messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	senders := make(map[int]*types.User, len(chat.Participants))
	for _, p := range chat.Participants {
		senders[p.UserId] = &types.User{Id: p.UserId, Username: p.Username, Avatar: p.Avatar}
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		messages = append(messages, messageToType(m, chat.ExternalId, senders[m.UserId]))
	}

	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}

	s.writeJson(w, http.StatusOK, MessagesResponse{
		Messages: messages,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageId, err := strconv.Atoi(r.PathValue("messageId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessageById(messageId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if msg.UserId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteMessage(messageId); err != nil {
		s.log.Println("delete message:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// repair the chat's last-message preview
	latest, err := s.db.GetLatestMessage(msg.ChatId)
	switch {
	case err == nil:
		err = s.db.SetChatPreview(msg.ChatId, latest.Text, sql.NullTime{Time: latest.CreatedAt, Valid: true})
	case errors.Is(err, sql.ErrNoRows):
		err = s.db.SetChatPreview(msg.ChatId, "", sql.NullTime{})
	}
	if err != nil {
		s.log.Println("set chat preview:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

// getNotificationCount returns the number of chats the requester
// participates in but has not seen, for the UI badge.
func (s *ChatApp) getNotificationCount(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.UnseenChatCount(userId)
	if err != nil {
		s.log.Println("unseen chat count:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, count)
}

func (s *ChatApp) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health: db ping:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, HealthResponse{
		Status:      "OK",
		Timestamp:   time.Now().UTC(),
		UptimeMs:    time.Since(s.startTime).Milliseconds(),
		OnlineUsers: s.cs.OnlineUserCount(r.Context()),
	})
}

// chatForRequester loads a chat by external id and verifies the requester
// participates in it.
func (s *ChatApp) chatForRequester(externalId string, userId int) (database.Chat, *ApiError) {
	if externalId == "" {
		return database.Chat{}, NewBadRequestError()
	}

	chat, err := s.db.GetChatByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Chat{}, NewNotFoundError()
		}
		return database.Chat{}, NewInternalServerError(err)
	}

	if !hasParticipant(chat, userId) {
		return database.Chat{}, NewForbiddenError()
	}

	return chat, nil
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(types.User{
		Id:        user.Id,
		Username:  user.Username,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
