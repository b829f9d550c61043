// Package chat persists chat rooms and their messages.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chatSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists rooms and messages in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, chatSchema); err != nil {
		return nil, fmt.Errorf("create chat tables: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) CreateRoom(ctx context.Context, name string) (Room, error) {
	room := Room{ID: uuid.NewString(), Name: name}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, name) VALUES ($1, $2)
		RETURNING created_at`, room.ID, room.Name,
	).Scan(&room.CreatedAt)
	if err != nil {
		return Room{}, fmt.Errorf("insert room: %w", err)
	}
	return room, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// ErrRoomNotFound reports a message operation against a missing room.
var ErrRoomNotFound = fmt.Errorf("room not found")

func (s *Store) CreateMessage(ctx context.Context, roomID, sender, content string) (Message, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID,
	).Scan(&exists)
	if err != nil {
		return Message{}, fmt.Errorf("check room: %w", err)
	}
	if !exists {
		return Message{}, ErrRoomNotFound
	}

	message := Message{ID: uuid.NewString(), RoomID: roomID, Sender: sender, Content: content}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, room_id, sender, content) VALUES ($1, $2, $3, $4)
		RETURNING created_at`, message.ID, message.RoomID, message.Sender, message.Content,
	).Scan(&message.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

func (s *Store) ListMessages(ctx context.Context, roomID string) ([]Message, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check room: %w", err)
	}
	if !exists {
		return nil, ErrRoomNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender, content, created_at
		FROM messages WHERE room_id = $1 ORDER BY created_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var message Message
		if err := rows.Scan(&message.ID, &message.RoomID, &message.Sender, &message.Content, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
