package broadcast

import (
	"time"

	"github.com/kolide/kit/ulid"
)

// Notification is a single message to be delivered by a backend.
type Notification struct {
	ID          string
	Application *Application
	Alert       Alert
	Title       string
	Text        string
	Icon        Icon
	CreatedAt   time.Time
}

func NewNotification(app *Application, alert Alert, title, text string, icon Icon) Notification {
	return Notification{
		ID:          ulid.New(),
		Application: app,
		Alert:       alert,
		Title:       title,
		Text:        text,
		Icon:        icon,
		CreatedAt:   time.Now(),
	}
}

// AppName returns the name of the owning application, or an empty string.
func (n Notification) AppName() string {
	if n.Application == nil {
		return ""
	}
	return n.Application.Name()
}
