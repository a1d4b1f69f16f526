package push

import (
	"errors"
	"log/slog"

	"github.com/chorequest/chorequest/internal/model"
	"github.com/chorequest/chorequest/internal/store"

	"github.com/sourcegraph/conc"
)

// Dispatcher fans push notifications out to every registered device of a
// set of players. Sends run in the background and never block the caller;
// a failed push is logged and, when the subscription is gone, pruned.
type Dispatcher struct {
	service *Service
	store   *store.PushStore
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. service may be nil when VAPID keys
// are not configured; Notify then becomes a no-op.
func NewDispatcher(service *Service, pushStore *store.PushStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service: service,
		store:   pushStore,
		logger:  logger,
	}
}

// Enabled reports whether push delivery is configured.
func (d *Dispatcher) Enabled() bool {
	return d.service != nil
}

// Notify sends a payload to all subscriptions of the given players. An
// empty player list targets everyone. Delivery is fire-and-forget; errors
// never propagate to the game flow that triggered the notification.
func (d *Dispatcher) Notify(payload Payload, playerIDs ...int64) {
	if d.service == nil {
		return
	}

	subs, err := d.subscriptions(playerIDs)
	if err != nil {
		d.logger.Error("list push subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	wg := conc.NewWaitGroup()
	for _, sub := range subs {
		sub := sub
		wg.Go(func() {
			d.send(&sub, payload)
		})
	}
	go wg.Wait()
}

func (d *Dispatcher) subscriptions(playerIDs []int64) ([]model.PushSubscription, error) {
	if len(playerIDs) == 0 {
		return d.store.ListAll()
	}

	var subs []model.PushSubscription
	for _, id := range playerIDs {
		playerSubs, err := d.store.ListByPlayer(id)
		if err != nil {
			return nil, err
		}
		subs = append(subs, playerSubs...)
	}
	return subs, nil
}

func (d *Dispatcher) send(sub *model.PushSubscription, payload Payload) {
	err := d.service.Send(sub, payload)
	if err == nil {
		return
	}

	if errors.Is(err, ErrExpired) {
		d.logger.Info("pruning expired push subscription", "endpoint", sub.Endpoint)
		if delErr := d.store.DeleteByEndpoint(sub.Endpoint); delErr != nil {
			d.logger.Error("prune push subscription", "error", delErr)
		}
		return
	}

	d.logger.Error("send push notification", "endpoint", sub.Endpoint, "error", err)
}
