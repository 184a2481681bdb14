package api

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
)

// Services groups the handlers a server mounts. Nil entries are skipped.
type Services struct {
	Text        *TextService
	Coach       *CoachService
	Preferences *PreferencesService
	Results     *ResultsService
	Usage       *UsageService
}

// RegisterRoutes mounts every configured service on router.
func (s Services) RegisterRoutes(router *mux.Router, opts ...connect.HandlerOption) {
	mount := func(path string, h http.Handler) {
		router.PathPrefix(path).Handler(h)
	}
	if s.Text != nil {
		mount(NewTextServiceHandler(s.Text, opts...))
	}
	if s.Coach != nil {
		mount(NewCoachServiceHandler(s.Coach, opts...))
	}
	if s.Preferences != nil {
		mount(NewPreferencesServiceHandler(s.Preferences, opts...))
	}
	if s.Results != nil {
		mount(NewResultsServiceHandler(s.Results, opts...))
	}
	if s.Usage != nil {
		mount(NewUsageServiceHandler(s.Usage, opts...))
	}
}

// Names lists the mounted service names.
func (s Services) Names() []string {
	var names []string
	if s.Text != nil {
		names = append(names, TextServiceName)
	}
	if s.Coach != nil {
		names = append(names, CoachServiceName)
	}
	if s.Preferences != nil {
		names = append(names, PreferencesServiceName)
	}
	if s.Results != nil {
		names = append(names, ResultsServiceName)
	}
	if s.Usage != nil {
		names = append(names, UsageServiceName)
	}
	return names
}
