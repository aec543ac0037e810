package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
)

const lobbyColumns = `session_id, user_id, display_name, avatar, is_ready, is_host, connection_status, joined_at, last_seen`

func scanLobbyParticipant(row pgx.Row) (*models.LobbyParticipant, error) {
	var p models.LobbyParticipant
	err := row.Scan(&p.SessionID, &p.UserID, &p.DisplayName, &p.Avatar, &p.IsReady, &p.IsHost, &p.ConnectionStatus, &p.JoinedAt, &p.LastSeen)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectLobby(rows pgx.Rows) ([]*models.LobbyParticipant, error) {
	defer rows.Close()
	var out []*models.LobbyParticipant
	for rows.Next() {
		p, err := scanLobbyParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetLobbyParticipant fetches one lobby record.
func (s *Store) GetLobbyParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.LobbyParticipant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobby_participants WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	p, err := scanLobbyParticipant(row)
	if err != nil {
		return nil, notFound(err, "lobby participant %s not found", userID)
	}
	return p, nil
}

// ListLobbyParticipants returns a session's lobby in join order.
func (s *Store) ListLobbyParticipants(ctx context.Context, sessionID uuid.UUID) ([]*models.LobbyParticipant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+lobbyColumns+` FROM lobby_participants WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	return collectLobby(rows)
}

// ListStaleLobbyParticipants returns disconnected records not seen since cutoff.
func (s *Store) ListStaleLobbyParticipants(ctx context.Context, cutoff time.Time) ([]*models.LobbyParticipant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+lobbyColumns+` FROM lobby_participants
		WHERE connection_status = 'disconnected' AND last_seen < $1
		ORDER BY seq`, cutoff)
	if err != nil {
		return nil, err
	}
	return collectLobby(rows)
}

// InsertLobbyParticipant creates a lobby record.
func (s *Store) InsertLobbyParticipant(ctx context.Context, p *models.LobbyParticipant) error {
	q := `INSERT INTO lobby_participants (` + lobbyColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, p.SessionID, p.UserID, p.DisplayName, p.Avatar, p.IsReady, p.IsHost, p.ConnectionStatus, p.JoinedAt, p.LastSeen)
		return err
	})
}

// UpdateLobbyParticipant writes the mutable lobby fields.
func (s *Store) UpdateLobbyParticipant(ctx context.Context, p *models.LobbyParticipant) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE lobby_participants
		SET display_name = $3, avatar = $4, is_ready = $5, is_host = $6, connection_status = $7, last_seen = $8
		WHERE session_id = $1 AND user_id = $2`,
		p.SessionID, p.UserID, p.DisplayName, p.Avatar, p.IsReady, p.IsHost, p.ConnectionStatus, p.LastSeen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.CodeNotFound, "lobby participant %s not found", p.UserID)
	}
	return nil
}

// DeleteLobbyParticipant removes one lobby record.
func (s *Store) DeleteLobbyParticipant(ctx context.Context, sessionID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lobby_participants WHERE session_id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.CodeNotFound, "lobby participant %s not found", userID)
	}
	return nil
}

// DeleteLobbyParticipants clears a session's lobby.
func (s *Store) DeleteLobbyParticipants(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM lobby_participants WHERE session_id = $1`, sessionID)
	return err
}
