package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/geneticconstructor/constructor-store/internal/domain"
	"github.com/geneticconstructor/constructor-store/internal/usecase"
)

// SignalService fans commons events out over redis pub/sub.
// A nil redis client turns publishing into a no-op.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Enabled() bool {
	return s != nil && s.rdb != nil
}

func (s *SignalService) PublishCommonsEvent(ctx context.Context, event domain.CommonsEvent) error {
	if !s.Enabled() {
		return nil
	}

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, domain.CommonsChannel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime forwards commons events to output until ctx is done.
// Events whose project is not in the current filter are dropped; an empty
// filter passes everything. New filters arrive on input.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- domain.CommonsEvent) {
	if !s.Enabled() {
		<-ctx.Done()
		return
	}

	pubsub := s.rdb.Subscribe(ctx, domain.CommonsChannel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	filter := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return
		case projects, ok := <-input:
			if !ok {
				return
			}
			filter = make(map[string]bool, len(projects))
			for _, p := range projects {
				filter[p] = true
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event domain.CommonsEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(
					ctx, "failed to decode commons event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			if len(filter) > 0 && !filter[event.ProjectID] {
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

var _ usecase.EventPublisher = (*SignalService)(nil)
