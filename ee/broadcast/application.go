package broadcast

import (
	"sync"
)

// Alert is a named category of notification an application can raise.
type Alert struct {
	Key  string
	Icon Icon
}

func NewAlert(key string, icon Icon) Alert {
	return Alert{Key: key, Icon: icon}
}

// Application identifies a notification source within a Core. Applications
// are registered by name; two Applications with the same name are the same
// registration.
type Application struct {
	name string
	icon Icon

	mu     sync.RWMutex
	alerts map[string]Alert
}

func NewApplication(name string, icon Icon) *Application {
	return &Application{
		name:   name,
		icon:   icon,
		alerts: make(map[string]Alert),
	}
}

func (a *Application) Name() string { return a.name }

func (a *Application) Icon() Icon { return a.icon }

// AddAlert adds or replaces the alert with the same key.
func (a *Application) AddAlert(alert Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts[alert.Key] = alert
}

func (a *Application) Alert(key string) (Alert, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	alert, ok := a.alerts[key]
	return alert, ok
}

// Alerts returns a copy of the application's alerts, keyed by alert key.
func (a *Application) Alerts() map[string]Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	alerts := make(map[string]Alert, len(a.alerts))
	for k, v := range a.alerts {
		alerts[k] = v
	}
	return alerts
}
