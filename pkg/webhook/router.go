package webhook

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// EmailEventsPath is where the email provider posts delivery events.
const EmailEventsPath = "/webhooks/email"

// Mount registers h on r for every method so non-POST requests get the
// handler's JSON 405 reply instead of the router default.
func Mount(r chi.Router, h http.Handler) {
	r.Handle(EmailEventsPath, h)
}
