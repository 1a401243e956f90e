package services

// Event is pushed to connected admin dashboards.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventEstimateSubmitted    = "estimate.submitted"
	EventTestimonialSubmitted = "testimonial.submitted"
	EventUploadReceived       = "upload.received"
	EventJobDeadLettered      = "job.dead_lettered"
)

type Publisher interface {
	Publish(Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
