package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mcdev12/zippy/go/internal/models"
)

// PreferencesStore loads a saved bundle.
type PreferencesStore interface {
	Load(ctx context.Context, userID string) (*models.Preferences, error)
}

// PreferencesSaver queues a bundle for a debounced write.
type PreferencesSaver interface {
	Save(userID string, prefs models.Preferences)
}

// PreferencesService stores per user settings. Both calls need a signed
// in caller.
type PreferencesService struct {
	store    PreferencesStore
	saver    PreferencesSaver
	verifier Verifier
}

func NewPreferencesService(store PreferencesStore, saver PreferencesSaver, verifier Verifier) *PreferencesService {
	return &PreferencesService{store: store, saver: saver, verifier: verifier}
}

func (s *PreferencesService) Load(ctx context.Context, req *connect.Request[LoadPreferencesRequest]) (*connect.Response[LoadPreferencesResponse], error) {
	userID, err := requireUser(ctx, s.verifier, req.Header())
	if err != nil {
		return nil, err
	}
	prefs, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&LoadPreferencesResponse{Preferences: prefs}), nil
}

// Save acknowledges immediately; the write happens after the debounce.
func (s *PreferencesService) Save(ctx context.Context, req *connect.Request[SavePreferencesRequest]) (*connect.Response[SavePreferencesResponse], error) {
	userID, err := requireUser(ctx, s.verifier, req.Header())
	if err != nil {
		return nil, err
	}
	s.saver.Save(userID, req.Msg.Preferences)
	return connect.NewResponse(&SavePreferencesResponse{}), nil
}

func NewPreferencesServiceHandler(svc *PreferencesService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	load := connect.NewUnaryHandler(PreferencesServiceLoadProcedure, svc.Load, opts...)
	save := connect.NewUnaryHandler(PreferencesServiceSaveProcedure, svc.Save, opts...)
	return "/" + PreferencesServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PreferencesServiceLoadProcedure:
			load.ServeHTTP(w, r)
		case PreferencesServiceSaveProcedure:
			save.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
