package routes

import (
	"net/http"
)

// System registers routes and builds an http.Handler from them.
type System interface {
	RegisterGroup(group Group)
	RegisterRoute(route Route)
	Handle(pattern string, handler http.Handler)
	Build() http.Handler
	Groups() []Group
	Routes() []Route
}

type registry struct {
	routes []Route
	groups []Group
	native map[string]http.Handler
	order  []string
}

// New creates an empty route registry.
func New() System {
	return &registry{
		routes: []Route{},
		groups: []Group{},
		native: make(map[string]http.Handler),
	}
}

func (r *registry) Groups() []Group {
	return r.groups
}

func (r *registry) Routes() []Route {
	return r.routes
}

// RegisterRoute adds a top-level route.
func (r *registry) RegisterRoute(route Route) {
	r.routes = append(r.routes, route)
}

// RegisterGroup adds a route group.
func (r *registry) RegisterGroup(group Group) {
	r.groups = append(r.groups, group)
}

// Handle mounts a plain http.Handler, such as a metrics exporter, at pattern.
func (r *registry) Handle(pattern string, handler http.Handler) {
	if _, ok := r.native[pattern]; !ok {
		r.order = append(r.order, pattern)
	}
	r.native[pattern] = handler
}

// Build constructs a ServeMux from all registered routes, groups and handlers.
func (r *registry) Build() http.Handler {
	mux := http.NewServeMux()

	for _, pattern := range r.order {
		mux.Handle(pattern, r.native[pattern])
	}

	for _, route := range r.routes {
		mux.HandleFunc(route.Method+" "+route.Pattern, route.Handler)
	}

	for _, group := range r.groups {
		registerGroup(mux, "", group)
	}

	return mux
}

func registerGroup(mux *http.ServeMux, parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+fullPrefix+route.Pattern, route.Handler)
	}
	for _, child := range group.Children {
		registerGroup(mux, fullPrefix, child)
	}
}
