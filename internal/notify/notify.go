package notify

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title      string
	Message    string
	Type       NotificationType
	InstanceID string // Optional instance reference
	RunID      string // Optional server run reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// ForRunResult builds the notification for a finished run
func ForRunResult(instanceID, runID string, resolved bool, detail string) Notification {
	if resolved {
		return Notification{
			Title:      "Run resolved: " + instanceID,
			Message:    "The agent produced a verified fix.",
			Type:       NotifySuccess,
			InstanceID: instanceID,
			RunID:      runID,
		}
	}
	msg := "The agent run failed."
	if detail != "" {
		msg = detail
	}
	return Notification{
		Title:      "Run failed: " + instanceID,
		Message:    msg,
		Type:       NotifyError,
		InstanceID: instanceID,
		RunID:      runID,
	}
}
