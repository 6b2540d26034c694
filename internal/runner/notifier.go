package runner

import (
	"context"
	"log/slog"

	"github.com/nfrund/rerun/internal/pubsub"
)

// Topics the Notifier publishes runner events on.
const (
	// TopicStateChanged carries every state transition; the payload is
	// the new state.
	TopicStateChanged = "runner.state.changed"

	// TopicFileChangeIgnored fires when the script file changed but
	// run-on-save is disabled.
	TopicFileChangeIgnored = "runner.file.change_ignored"
)

// Notifier republishes a Runner's synchronous notifications onto the
// pub/sub bus, so observers outside the supervisor consume them like any
// other message stream.
type Notifier struct {
	publisher pubsub.Publisher
}

// NewNotifier creates a Notifier that publishes through the given publisher.
func NewNotifier(publisher pubsub.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Attach subscribes the notifier to the runner's notification hooks.
func (n *Notifier) Attach(r *Runner) {
	script := r.session.ScriptPath

	r.OnStateChanged(func(state State) {
		n.publish(TopicStateChanged, []byte(state), script)
	})
	r.OnFileChangeIgnored(func() {
		n.publish(TopicFileChangeIgnored, nil, script)
	})
}

func (n *Notifier) publish(topic string, payload []byte, script string) {
	msg := pubsub.Message{
		Topic:    topic,
		Payload:  payload,
		Metadata: map[string]string{"script": script},
	}
	if err := n.publisher.Publish(context.Background(), msg); err != nil {
		slog.Error("Failed to publish runner event", "topic", topic, "error", err)
	}
}
