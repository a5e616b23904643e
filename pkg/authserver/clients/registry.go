// Package clients keeps the registry of applications (OAuth clients) known
// to the authorization server.
package clients

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registeredApplications = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "doorman_registered_applications",
	Help: "Number of applications in the client registry.",
})

// Application is a registered OAuth client. The (ClientID, RedirectURI) pair
// uniquely identifies an entry.
type Application struct {
	ClientID    string
	RedirectURI string
	Name        string
	URI         string
	LogoURI     string
	TosURI      string
}

// Registry is an insertion-ordered, thread-safe set of applications.
// Entries are never deleted; references returned by Find stay valid for the
// life of the registry.
type Registry struct {
	mu   sync.Mutex
	apps []*Application
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers an application. A duplicate (same client id and redirect
// URI) collapses to the existing entry, which is returned.
func (r *Registry) Add(app Application) *Application {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.apps {
		if existing.ClientID == app.ClientID && existing.RedirectURI == app.RedirectURI {
			return existing
		}
	}

	added := &Application{
		ClientID:    app.ClientID,
		RedirectURI: app.RedirectURI,
		Name:        app.Name,
		URI:         app.URI,
		LogoURI:     app.LogoURI,
		TosURI:      app.TosURI,
	}
	r.apps = append(r.apps, added)
	registeredApplications.Set(float64(len(r.apps)))
	return added
}

// Find looks up an application. With a redirect URI the match is exact; with
// an empty redirect URI the first entry for the client id (in insertion
// order) wins. Returns nil when nothing matches.
func (r *Registry) Find(clientID, redirectURI string) *Application {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, app := range r.apps {
		if app.ClientID != clientID {
			continue
		}
		if redirectURI == "" || app.RedirectURI == redirectURI {
			return app
		}
	}
	return nil
}

// Len returns the number of registered applications.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps)
}

// List returns a snapshot of the registered applications in insertion order.
func (r *Registry) List() []Application {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Application, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, *app)
	}
	return out
}
