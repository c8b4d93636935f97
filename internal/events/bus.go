package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
)

// ErrBusClosed is returned when publishing after Close.
var ErrBusClosed = errors.New("event bus is closed")

// JobTerminalHandler reacts to one terminal job event.
type JobTerminalHandler func(ctx context.Context, ev JobTerminal) error

// Bus is the in-process event bus. Handlers must be added before Run.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger *slog.Logger
}

// NewBus creates a bus whose handlers recover from panics.
func NewBus(log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "event_bus"))
	wmLogger := NewSlogAdapter(log)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger),
		router: router,
		logger: log,
	}, nil
}

// PublishJobTerminal publishes the terminal event of job. Its signature
// matches task.TerminalHook; failures are logged, never returned.
func (b *Bus) PublishJobTerminal(ctx context.Context, job *domain.Job) {
	log := logger.FromContextOrDefault(ctx, b.logger).With(slog.String("job_id", job.ID.String()))

	payload, err := json.Marshal(NewJobTerminal(job))
	if err != nil {
		log.Error("failed to encode job terminal event", slog.String("error", err.Error()))
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("job_type", string(job.Type))
	msg.Metadata.Set("status", string(job.Status))

	if err := b.pubsub.Publish(TopicJobTerminal, msg); err != nil {
		log.Error("failed to publish job terminal event", slog.String("error", err.Error()))
		return
	}
	log.Debug("published job terminal event", slog.String("status", string(job.Status)))
}

// HandleJobTerminal subscribes handler to terminal job events under name.
func (b *Bus) HandleJobTerminal(name string, handler JobTerminalHandler) {
	b.router.AddNoPublisherHandler(name, TopicJobTerminal, b.pubsub, func(msg *message.Message) error {
		ev, err := DecodeJobTerminal(msg.Payload)
		if err != nil {
			// a malformed event can never succeed; drop it
			b.logger.Error("dropping malformed event",
				slog.String("message_uuid", msg.UUID),
				slog.String("error", err.Error()))
			return nil
		}
		return handler(msg.Context(), ev)
	})
}

// Run processes events until ctx is done or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and the underlying channel.
func (b *Bus) Close() error {
	return errors.Join(b.router.Close(), b.pubsub.Close())
}
