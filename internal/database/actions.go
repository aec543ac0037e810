package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizlive/internal/models"
)

// InsertActions persists a batch of action records in one transaction.
func (s *Store) InsertActions(ctx context.Context, records []models.ActionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			var payload []byte
			if len(rec.Payload) > 0 {
				payload = rec.Payload
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO session_actions (session_id, action_index, actor_user_id, action_type, action_payload, occurred_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				rec.SessionID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, payload, time.UnixMilli(rec.Timestamp))
			if err != nil {
				return err
			}
		}
		return nil
	})
}
