package store

import (
	"context"
	"database/sql"
	"fmt"
)

const messageColumns = `id, name, email, phone, company, subject, body, service_id, status, created_at`

type MessageRepository struct {
	db *sql.DB
}

func (s *PostgresStore) Messages() MessageRepository {
	return MessageRepository{db: s.db}
}

func scanMessage(row rowScanner) (Message, error) {
	var msg Message
	err := row.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Phone, &msg.Company, &msg.Subject, &msg.Body, &msg.ServiceID, &msg.Status, &msg.CreatedAt)
	return msg, err
}

func (r MessageRepository) List(ctx context.Context) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

func (r MessageRepository) Get(ctx context.Context, id string) (Message, error) {
	msg, err := scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id))
	if err != nil {
		return Message{}, notFound(err)
	}
	return msg, nil
}

func (r MessageRepository) Create(ctx context.Context, msg Message) (Message, error) {
	if msg.Status == "" {
		msg.Status = MessageNew
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, name, email, phone, company, subject, body, service_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, msg.ID, msg.Name, msg.Email, msg.Phone, msg.Company, msg.Subject, msg.Body, msg.ServiceID, msg.Status).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Update only changes the status; the submitted fields are kept as sent.
func (r MessageRepository) Update(ctx context.Context, id string, msg Message) (Message, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status=$2 WHERE id=$1`, id, msg.Status)
	if err != nil {
		return Message{}, fmt.Errorf("update message: %w", err)
	}
	if err := expectOne(res); err != nil {
		return Message{}, err
	}
	msg.ID = id
	return msg, nil
}

func (r MessageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return expectOne(res)
}
