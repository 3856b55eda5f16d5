package database

import (
	"fmt"
	"time"
)

const defaultPageSize = 50

func (db *PgDechatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgDechatRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgDechatRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgDechatRepository) CreateChat(params CreateChatParams) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO chats (external_id, name, description, type, created_by, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) "+
			"RETURNING id, external_id, name, description, type, created_by, created_at, updated_at",
		params.ExternalId,
		params.Name,
		params.Description,
		params.Type,
		params.CreatedBy,
		time.Now().UTC(),
	)

	var chat Chat
	err = res.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.Name,
		&chat.Description,
		&chat.Type,
		&chat.CreatedBy,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return Chat{}, err
	}

	// the creator is always a participant and always the admin
	_, err = tx.Exec(
		"INSERT INTO chat_participants (chat_id, account_id, role, joined_at) VALUES ($1, $2, 'admin', $3)",
		chat.Id,
		params.CreatedBy,
		time.Now().UTC(),
	)
	if err != nil {
		return Chat{}, err
	}

	for _, accountId := range params.ParticipantIds {
		if accountId == params.CreatedBy {
			continue
		}
		_, err = tx.Exec(
			"INSERT INTO chat_participants (chat_id, account_id, role, joined_at) VALUES ($1, $2, 'member', $3)",
			chat.Id,
			accountId,
			time.Now().UTC(),
		)
		if err != nil {
			return Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func (db *PgDechatRepository) GetChatByExternalId(externalId string) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, description, type, created_by, created_at, updated_at FROM chats "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var chat Chat
	err := row.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.Name,
		&chat.Description,
		&chat.Type,
		&chat.CreatedBy,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)

	return chat, err
}

func (db *PgDechatRepository) ListChats(accountId int) ([]Chat, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.name, c.description, c.type, c.created_by, c.created_at, c.updated_at "+
			"FROM chat_participants p JOIN chats c ON c.id = p.chat_id "+
			"WHERE p.account_id = $1 ORDER BY c.updated_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err = rows.Scan(
			&chat.Id,
			&chat.ExternalId,
			&chat.Name,
			&chat.Description,
			&chat.Type,
			&chat.CreatedBy,
			&chat.CreatedAt,
			&chat.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}

		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

func (db *PgDechatRepository) GetParticipants(chatId int) ([]Participant, error) {
	rows, err := db.conn.Query(
		"SELECT p.id, p.chat_id, p.account_id, a.username, p.role, p.joined_at "+
			"FROM chat_participants p JOIN accounts a ON a.id = p.account_id "+
			"WHERE p.chat_id = $1 ORDER BY p.joined_at",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err = rows.Scan(
			&p.Id,
			&p.ChatId,
			&p.AccountId,
			&p.Username,
			&p.Role,
			&p.JoinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}

		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (db *PgDechatRepository) IsParticipant(accountId, chatId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM chat_participants WHERE account_id = $1 AND chat_id = $2 LIMIT 1",
		accountId,
		chatId,
	)

	var id int
	return res.Scan(&id) == nil
}

func (db *PgDechatRepository) CreateDirectMessage(msg DirectMessage) error {
	_, err := db.conn.Exec(
		"INSERT INTO direct_messages (id, conversation_id, sender, recipient, text, timestamp) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		msg.Id,
		msg.ConversationId,
		msg.Sender,
		msg.Recipient,
		msg.Text,
		msg.Timestamp,
	)

	return err
}

// GetDirectMessages returns the most recent limit messages of a
// conversation, oldest first.
func (db *PgDechatRepository) GetDirectMessages(conversationId string, limit int) ([]DirectMessage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	rows, err := db.conn.Query(
		"SELECT id, conversation_id, sender, recipient, text, timestamp FROM direct_messages "+
			"WHERE conversation_id = $1 ORDER BY timestamp DESC LIMIT $2",
		conversationId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]DirectMessage, 0, limit)
	for rows.Next() {
		var msg DirectMessage
		if err = rows.Scan(
			&msg.Id,
			&msg.ConversationId,
			&msg.Sender,
			&msg.Recipient,
			&msg.Text,
			&msg.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan direct message: %w", err)
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(messages)
	return messages, nil
}

func (db *PgDechatRepository) CreateRoomMessage(msg RoomMessage) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_messages (id, room_id, sender_id, encrypted_content, timestamp) "+
			"VALUES ($1, $2, $3, $4, $5)",
		msg.Id,
		msg.RoomId,
		msg.SenderId,
		msg.EncryptedContent,
		msg.Timestamp,
	)

	return err
}

// GetRoomMessages pages through a room's history, oldest first within the
// page. Offset counts back from the newest message.
func (db *PgDechatRepository) GetRoomMessages(roomId string, limit, offset int) ([]RoomMessage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, sender_id, encrypted_content, timestamp FROM room_messages "+
			"WHERE room_id = $1 ORDER BY timestamp DESC LIMIT $2 OFFSET $3",
		roomId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]RoomMessage, 0, limit)
	for rows.Next() {
		var msg RoomMessage
		if err = rows.Scan(
			&msg.Id,
			&msg.RoomId,
			&msg.SenderId,
			&msg.EncryptedContent,
			&msg.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan room message: %w", err)
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(messages)
	return messages, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
