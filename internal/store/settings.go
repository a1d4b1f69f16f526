package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/chorequest/chorequest/internal/scoring"
)

const (
	keyBaseMultiplier    = "scoring_base_multiplier"
	keyUrgencyMultiplier = "scoring_urgency_multiplier"
	keyEarlyBonus        = "scoring_early_bonus"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetScoringConfig loads the scoring multipliers, falling back to defaults
// for any key that is unset or malformed.
func (s *SettingsStore) GetScoringConfig() (scoring.Config, error) {
	cfg := scoring.DefaultConfig()

	keys := []struct {
		key  string
		dest *int
	}{
		{keyBaseMultiplier, &cfg.BaseMultiplier},
		{keyUrgencyMultiplier, &cfg.UrgencyMultiplier},
		{keyEarlyBonus, &cfg.EarlyBonus},
	}
	for _, k := range keys {
		value, err := s.Get(k.key)
		if err != nil {
			return cfg, err
		}
		if value == "" {
			continue
		}
		if n, err := strconv.Atoi(value); err == nil {
			*k.dest = n
		}
	}
	return cfg, nil
}

func (s *SettingsStore) SetScoringConfig(cfg scoring.Config) error {
	if err := s.Set(keyBaseMultiplier, strconv.Itoa(cfg.BaseMultiplier)); err != nil {
		return err
	}
	if err := s.Set(keyUrgencyMultiplier, strconv.Itoa(cfg.UrgencyMultiplier)); err != nil {
		return err
	}
	return s.Set(keyEarlyBonus, strconv.Itoa(cfg.EarlyBonus))
}
