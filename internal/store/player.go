package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/scoring"
)

type PlayerStore struct {
	db *sql.DB
}

func NewPlayerStore(db *sql.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

const playerCols = `id, name, exp, created_at, updated_at`

func scanPlayer(scanner interface{ Scan(...any) error }) (*model.Player, error) {
	var p model.Player
	err := scanner.Scan(&p.ID, &p.Name, &p.Exp, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Level = scoring.LevelOf(p.Exp)
	return &p, nil
}

func (s *PlayerStore) Create(name string) (*model.Player, error) {
	result, err := s.db.Exec(`INSERT INTO players (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PlayerStore) GetByID(id int64) (*model.Player, error) {
	row := s.db.QueryRow(`SELECT `+playerCols+` FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	if p.ClaimedRewards, err = s.ListClaimedRewards(p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PlayerStore) List() ([]model.Player, error) {
	rows, err := s.db.Query(`SELECT ` + playerCols + ` FROM players ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}

	for i := range players {
		claimed, err := s.ListClaimedRewards(players[i].ID)
		if err != nil {
			return nil, err
		}
		players[i].ClaimedRewards = claimed
	}
	return players, nil
}

// ListIDs returns the current player roster. Notification garbage
// collection compares seen-by sets against this.
func (s *PlayerStore) ListIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM players ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list player ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PlayerStore) UpdateName(id int64, name string) (*model.Player, error) {
	_, err := s.db.Exec(`UPDATE players SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update player: %w", err)
	}
	return s.GetByID(id)
}

func (s *PlayerStore) SetExp(id int64, exp int) error {
	_, err := s.db.Exec(`UPDATE players SET exp = ?, updated_at = ? WHERE id = ?`, exp, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set player exp: %w", err)
	}
	return nil
}

// SetExpTx writes a player's cumulative EXP inside the approval transaction.
func (s *PlayerStore) SetExpTx(tx *sql.Tx, id int64, exp int) error {
	_, err := tx.Exec(`UPDATE players SET exp = ?, updated_at = ? WHERE id = ?`, exp, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set player exp: %w", err)
	}
	return nil
}

func (s *PlayerStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM players WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

// --- Claimed rewards ---

// AddClaimedReward records a reward claim. It reports whether the claim was
// new; reclaiming an already-claimed reward is a no-op.
func (s *PlayerStore) AddClaimedReward(playerID, rewardID int64) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO player_rewards (player_id, reward_id) VALUES (?, ?)`,
		playerID, rewardID,
	)
	if err != nil {
		return false, fmt.Errorf("add claimed reward: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PlayerStore) ListClaimedRewards(playerID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT reward_id FROM player_rewards WHERE player_id = ? ORDER BY claimed_at ASC, reward_id ASC`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claimed rewards: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed reward: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- PIN methods ---

func (s *PlayerStore) SetPIN(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE players SET pin_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *PlayerStore) GetPINHash(id int64) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT pin_hash FROM players WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pin hash: %w", err)
	}
	return hash, nil
}

func (s *PlayerStore) ClearPIN(id int64) error {
	_, err := s.db.Exec(`UPDATE players SET pin_hash = '' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}
