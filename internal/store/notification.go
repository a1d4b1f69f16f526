package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/chorequest/chorequest/internal/model"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

const notificationCols = `id, type, player_id, player_name, level, reward_id, created_at`

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var notifType string
	var level sql.NullInt64
	var rewardID sql.NullInt64

	err := scanner.Scan(&n.ID, &notifType, &n.PlayerID, &n.PlayerName, &level, &rewardID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	n.Type = model.NotificationType(notifType)
	if level.Valid {
		l := int(level.Int64)
		n.Level = &l
	}
	if rewardID.Valid {
		n.RewardID = &rewardID.Int64
	}
	return &n, nil
}

func (s *NotificationStore) Insert(n model.Notification) (*model.Notification, error) {
	var level sql.NullInt64
	if n.Level != nil {
		level = sql.NullInt64{Int64: int64(*n.Level), Valid: true}
	}
	var rewardID sql.NullInt64
	if n.RewardID != nil {
		rewardID = sql.NullInt64{Int64: *n.RewardID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO notifications (type, player_id, player_name, level, reward_id) VALUES (?, ?, ?, ?, ?)`,
		string(n.Type), n.PlayerID, n.PlayerName, level, rewardID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *NotificationStore) GetByID(id int64) (*model.Notification, error) {
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n.SeenBy, err = s.listSeenBy(n.ID); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationStore) ListAll() ([]model.Notification, error) {
	return s.list(`SELECT ` + notificationCols + ` FROM notifications ORDER BY created_at ASC, id ASC`)
}

// ListUnseenByPlayer returns all notifications the player has not yet
// acknowledged, oldest first, for replay on reconnect.
func (s *NotificationStore) ListUnseenByPlayer(playerID int64) ([]model.Notification, error) {
	return s.list(
		`SELECT `+notificationCols+` FROM notifications
		 WHERE id NOT IN (SELECT notification_id FROM notification_seen WHERE player_id = ?)
		 ORDER BY created_at ASC, id ASC`,
		playerID,
	)
}

func (s *NotificationStore) list(query string, args ...any) ([]model.Notification, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	for i := range notifications {
		seen, err := s.listSeenBy(notifications[i].ID)
		if err != nil {
			return nil, err
		}
		notifications[i].SeenBy = seen
	}
	return notifications, nil
}

func (s *NotificationStore) listSeenBy(notificationID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT player_id FROM notification_seen WHERE notification_id = ? ORDER BY player_id ASC`,
		notificationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list seen by: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen by: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkAllSeen records that the player has observed every stored
// notification.
func (s *NotificationStore) MarkAllSeen(playerID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO notification_seen (notification_id, player_id) SELECT id, ? FROM notifications`,
		playerID,
	)
	if err != nil {
		return fmt.Errorf("mark all seen: %w", err)
	}
	return nil
}

// DeleteFullySeen garbage-collects notifications that every player in the
// given roster has acknowledged. An empty roster deletes everything: with
// no players left there is nobody to replay to.
func (s *NotificationStore) DeleteFullySeen(roster []int64) error {
	if len(roster) == 0 {
		if _, err := s.db.Exec(`DELETE FROM notifications`); err != nil {
			return fmt.Errorf("delete notifications: %w", err)
		}
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roster)), ",")
	args := make([]any, len(roster))
	for i, id := range roster {
		args[i] = id
	}

	query := `DELETE FROM notifications WHERE id IN (
		SELECT notification_id FROM notification_seen
		WHERE player_id IN (` + placeholders + `)
		GROUP BY notification_id
		HAVING COUNT(DISTINCT player_id) = ?)`
	args = append(args, len(roster))

	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete fully seen notifications: %w", err)
	}
	return nil
}
