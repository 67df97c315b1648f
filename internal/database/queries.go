package database

import (
	"database/sql"
	"time"
)

func (db *PgChatRepository) GetUserById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, avatar, created_at, updated_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.Avatar,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRepository) CreateChat(params CreateChatParams) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	row := tx.QueryRow(
		"INSERT INTO chats (external_id, created_at, updated_at) "+
			"VALUES ($1, $2, $2) RETURNING id, external_id, created_at, updated_at",
		params.ExternalId,
		now,
	)

	var chat Chat
	if err := row.Scan(&chat.Id, &chat.ExternalId, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		return Chat{}, err
	}

	for _, userId := range params.UserIds {
		if _, err := tx.Exec(
			"INSERT INTO chat_participants (chat_id, user_id, seen) VALUES ($1, $2, false)",
			chat.Id, userId,
		); err != nil {
			return Chat{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Chat{}, err
	}

	chat.Participants = []Participant{
		{UserId: params.UserIds[0]},
		{UserId: params.UserIds[1]},
	}
	return chat, nil
}

const chatParticipantsQuery = `
	SELECT cp.user_id, u.username, u.avatar, cp.seen
	FROM chat_participants cp
	JOIN users u ON u.id = cp.user_id
	WHERE cp.chat_id = $1
	ORDER BY cp.user_id`

func (db *PgChatRepository) loadParticipants(chat *Chat) error {
	rows, err := db.conn.Query(chatParticipantsQuery, chat.Id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.UserId, &p.Username, &p.Avatar, &p.Seen); err != nil {
			return err
		}
		chat.Participants = append(chat.Participants, p)
	}

	return rows.Err()
}

func (db *PgChatRepository) GetChatByExternalId(externalId string) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, last_message, last_message_at, created_at, updated_at "+
			"FROM chats WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var chat Chat
	err := row.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.LastMessage,
		&chat.LastMessageAt,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return Chat{}, err
	}

	if err := db.loadParticipants(&chat); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func (db *PgChatRepository) GetChatByParticipants(userA, userB int) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT c.id, c.external_id, c.last_message, c.last_message_at, c.created_at, c.updated_at "+
			"FROM chats c "+
			"JOIN chat_participants a ON a.chat_id = c.id AND a.user_id = $1 "+
			"JOIN chat_participants b ON b.chat_id = c.id AND b.user_id = $2 "+
			"LIMIT 1",
		userA, userB,
	)

	var chat Chat
	err := row.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.LastMessage,
		&chat.LastMessageAt,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return Chat{}, err
	}

	if err := db.loadParticipants(&chat); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func (db *PgChatRepository) ListChats(userId int) ([]Chat, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.last_message, c.last_message_at, c.created_at, c.updated_at "+
			"FROM chats c "+
			"JOIN chat_participants cp ON cp.chat_id = c.id "+
			"WHERE cp.user_id = $1 "+
			"ORDER BY c.updated_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(
			&chat.Id,
			&chat.ExternalId,
			&chat.LastMessage,
			&chat.LastMessageAt,
			&chat.CreatedAt,
			&chat.UpdatedAt,
		); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chats {
		if err := db.loadParticipants(&chats[i]); err != nil {
			return nil, err
		}
	}

	return chats, nil
}

func (db *PgChatRepository) DeleteChat(chatId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// messages and participants first, chats row last
	if _, err := tx.Exec("DELETE FROM messages WHERE chat_id = $1", chatId); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chat_participants WHERE chat_id = $1", chatId); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chats WHERE id = $1", chatId); err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgChatRepository) CreateMessage(msg Message) (Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (chat_id, user_id, text, is_read, created_at) "+
			"VALUES ($1, $2, $3, false, $4) RETURNING id, chat_id, user_id, text, is_read, created_at",
		msg.ChatId,
		msg.UserId,
		msg.Text,
		msg.CreatedAt,
	)

	var m Message
	err := row.Scan(&m.Id, &m.ChatId, &m.UserId, &m.Text, &m.IsRead, &m.CreatedAt)
	return m, err
}

// UpdateChatOnMessage stamps a chat with its newest message preview and
// resets the seen flags so only the sender has seen the new state.
func (db *PgChatRepository) UpdateChatOnMessage(chatId, senderId int, text string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.Exec(
		"UPDATE chats SET last_message = $2, last_message_at = $3, updated_at = $3 WHERE id = $1",
		chatId, text, now,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"UPDATE chat_participants SET seen = (user_id = $2) WHERE chat_id = $1",
		chatId, senderId,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgChatRepository) GetMessageById(messageId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, chat_id, user_id, text, is_read, created_at FROM messages "+
			"WHERE id = $1 LIMIT 1",
		messageId,
	)

	var m Message
	err := row.Scan(&m.Id, &m.ChatId, &m.UserId, &m.Text, &m.IsRead, &m.CreatedAt)
	return m, err
}

func (db *PgChatRepository) GetMessages(chatId, offset, limit int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, chat_id, user_id, text, is_read, created_at FROM messages "+
			"WHERE chat_id = $1 ORDER BY created_at ASC OFFSET $2 LIMIT $3",
		chatId, offset, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Id, &m.ChatId, &m.UserId, &m.Text, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (db *PgChatRepository) CountMessages(chatId int) (int, error) {
	row := db.conn.QueryRow("SELECT COUNT(*) FROM messages WHERE chat_id = $1", chatId)

	var count int
	err := row.Scan(&count)
	return count, err
}

func (db *PgChatRepository) GetLatestMessage(chatId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, chat_id, user_id, text, is_read, created_at FROM messages "+
			"WHERE chat_id = $1 ORDER BY created_at DESC LIMIT 1",
		chatId,
	)

	var m Message
	err := row.Scan(&m.Id, &m.ChatId, &m.UserId, &m.Text, &m.IsRead, &m.CreatedAt)
	return m, err
}

func (db *PgChatRepository) DeleteMessage(messageId int) error {
	_, err := db.conn.Exec("DELETE FROM messages WHERE id = $1", messageId)
	return err
}

func (db *PgChatRepository) SetChatPreview(chatId int, text string, at sql.NullTime) error {
	_, err := db.conn.Exec(
		"UPDATE chats SET last_message = $2, last_message_at = $3, updated_at = $4 WHERE id = $1",
		chatId, text, at, time.Now().UTC(),
	)
	return err
}

// AddSeenBy appends the user to the chat's seen set.
func (db *PgChatRepository) AddSeenBy(chatId, userId int) error {
	_, err := db.conn.Exec(
		"UPDATE chat_participants SET seen = true WHERE chat_id = $1 AND user_id = $2",
		chatId, userId,
	)
	return err
}

// ResetSeenBy overwrites the chat's seen set to contain only the given
// user. This matches the explicit mark-read behavior the product shipped
// with: other participants' seen status is dropped, not preserved. Callers
// wanting union semantics should use AddSeenBy instead.
func (db *PgChatRepository) ResetSeenBy(chatId, userId int) error {
	_, err := db.conn.Exec(
		"UPDATE chat_participants SET seen = (user_id = $2) WHERE chat_id = $1",
		chatId, userId,
	)
	return err
}

func (db *PgChatRepository) MarkMessagesRead(chatId, userId int) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET is_read = true WHERE chat_id = $1 AND user_id <> $2 AND is_read = false",
		chatId, userId,
	)
	return err
}

func (db *PgChatRepository) UnreadCount(chatId, userId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE chat_id = $1 AND user_id <> $2 AND is_read = false",
		chatId, userId,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}

// UnseenChatCount returns the number of chats the user participates in but
// has not seen, used for the notification badge.
func (db *PgChatRepository) UnseenChatCount(userId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM chat_participants WHERE user_id = $1 AND seen = false",
		userId,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}
