package deployer

// Event represents a pipeline lifecycle event.
// Minimal and stable: name + model and optional fields via key/values.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// Event names.
const (
	EventRunStarted  = "run_started"
	EventStepDone    = "step_done"
	EventStepFailed  = "step_failed"
	EventRunFinished = "run_finished"
)

// EventPublisher receives events from the deployer. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
