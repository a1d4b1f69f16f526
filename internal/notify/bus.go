// Package notify publishes game notifications: durable storage, live
// WebSocket broadcast, and web push delivery behind a single call.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/push"
	"github.com/chorequest/chorequest/internal/store"
	"github.com/chorequest/chorequest/internal/websocket"
)

// Bus is the single entry point for emitting notifications. Every
// published notification is written to the durable log first, then
// broadcast to connected clients and pushed to subscribed devices.
type Bus struct {
	notifications *store.NotificationStore
	players       *store.PlayerStore
	hub           *websocket.Hub
	dispatcher    *push.Dispatcher
	logger        *slog.Logger
}

func NewBus(notifications *store.NotificationStore, players *store.PlayerStore, hub *websocket.Hub, dispatcher *push.Dispatcher, logger *slog.Logger) *Bus {
	return &Bus{
		notifications: notifications,
		players:       players,
		hub:           hub,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// PublishLevelUp records that a player reached the given level and fans
// the event out. One call per level crossed, so a large EXP award that
// jumps several levels produces several notifications.
func (b *Bus) PublishLevelUp(player *model.Player, level int) (*model.Notification, error) {
	n, err := b.publish(model.Notification{
		Type:       model.NotificationLevelUp,
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Level:      &level,
	})
	if err != nil {
		return nil, err
	}

	// The leveling player gets a personal message, everyone else gets
	// the announcement.
	b.dispatcher.Notify(push.Payload{
		Title: "Level up!",
		Body:  fmt.Sprintf("You reached level %d", level),
		Tag:   fmt.Sprintf("levelup-%d-%d", player.ID, level),
	}, player.ID)

	roster, err := b.players.ListIDs()
	if err != nil {
		b.logger.Error("load roster for levelup push", "error", err)
		return n, nil
	}
	others := make([]int64, 0, len(roster))
	for _, id := range roster {
		if id != player.ID {
			others = append(others, id)
		}
	}
	if len(others) > 0 {
		b.dispatcher.Notify(push.Payload{
			Title: "Level up!",
			Body:  fmt.Sprintf("%s reached level %d", player.Name, level),
			Tag:   fmt.Sprintf("levelup-%d-%d", player.ID, level),
		}, others...)
	}
	return n, nil
}

// PublishReward records that a player claimed a reward and fans the
// event out.
func (b *Bus) PublishReward(player *model.Player, reward *model.Reward) (*model.Notification, error) {
	n, err := b.publish(model.Notification{
		Type:       model.NotificationReward,
		PlayerID:   player.ID,
		PlayerName: player.Name,
		RewardID:   &reward.ID,
	})
	if err != nil {
		return nil, err
	}

	b.dispatcher.Notify(push.Payload{
		Title: "Reward claimed",
		Body:  fmt.Sprintf("%s claimed %q", player.Name, reward.Title),
		Tag:   fmt.Sprintf("reward-%d-%d", player.ID, reward.ID),
	})
	return n, nil
}

func (b *Bus) publish(n model.Notification) (*model.Notification, error) {
	stored, err := b.notifications.Insert(n)
	if err != nil {
		return nil, fmt.Errorf("publish notification: %w", err)
	}

	b.hub.Broadcast(websocket.NotificationMessage(*stored))
	return stored, nil
}

// ListUnseen returns the notifications the given player has not yet
// acknowledged, oldest first, so reconnecting clients can replay them.
func (b *Bus) ListUnseen(playerID int64) ([]model.Notification, error) {
	return b.notifications.ListUnseenByPlayer(playerID)
}

// Acknowledge marks every notification as seen by the given player, then
// deletes notifications that every player on the current roster has seen.
// Acknowledging twice is harmless.
func (b *Bus) Acknowledge(playerID int64) error {
	if err := b.notifications.MarkAllSeen(playerID); err != nil {
		return fmt.Errorf("acknowledge notifications: %w", err)
	}

	roster, err := b.players.ListIDs()
	if err != nil {
		return fmt.Errorf("load player roster: %w", err)
	}
	if err := b.notifications.DeleteFullySeen(roster); err != nil {
		return fmt.Errorf("collect seen notifications: %w", err)
	}
	return nil
}
