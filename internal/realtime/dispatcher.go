package realtime

import (
	"time"

	"github.com/trainlink/trainlink/internal/domain"
)

// Notification titles pushed to connected users.
const (
	TitleNewMessage       = "Nova Mensagem"
	TitleWorkoutCompleted = "Treino Concluído"
)

// Dispatcher pushes point-to-point notifications to a user's active
// connection. Delivery is at-most-once and best-effort: if the user is
// offline the notification is dropped, never queued or persisted.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// NotifyUser emits notification:new to the user if online. Returns
// whether the notification was handed to a connection; callers treat
// false as a dropped best-effort alert, not an error.
func (d *Dispatcher) NotifyUser(userID string, n domain.Notification) bool {
	client, ok := d.registry.Lookup(userID)
	if !ok {
		return false
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	return client.Send(Envelope{Event: EventNotificationNew, Data: n})
}

// NotifyNewMessage alerts the receiver of a persisted chat message.
func (d *Dispatcher) NotifyNewMessage(receiverID, senderName, preview string) bool {
	return d.NotifyUser(receiverID, domain.Notification{
		Type:    domain.NotificationTypeMessage,
		Title:   TitleNewMessage,
		Message: senderName + ": " + preview,
	})
}

// NotifyWorkoutCompleted alerts the assigned trainer that a client
// finished a workout.
func (d *Dispatcher) NotifyWorkoutCompleted(ptID, clientName, planName string) bool {
	return d.NotifyUser(ptID, domain.Notification{
		Type:    domain.NotificationTypeWorkout,
		Title:   TitleWorkoutCompleted,
		Message: clientName + " concluiu o treino " + planName,
	})
}
