package relay

import (
	"context"
	"database/sql"
	"errors"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) GetBot(ctx context.Context, botID string) (*Bot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT active, COALESCE(gpt_vector_store_id, ''), COALESCE(gpt_assistant_id, '')
		FROM bots
		WHERE bot_id = $1
	`, botID)

	b := Bot{ID: botID}
	if err := row.Scan(&b.Active, &b.VectorStoreID, &b.AssistantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *repo) SaveMessage(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (message, message_type, user_id, user_type, bot_id, channel, user_phone_number, session_id, thread_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.Message,
		string(rec.MessageType),
		rec.UserID,
		rec.UserType,
		rec.BotID,
		rec.Channel,
		rec.UserPhoneNumber,
		rec.SessionID,
		rec.ThreadID,
	)
	return err
}
