package api

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/zippy/go/internal/history"
	"github.com/mcdev12/zippy/go/internal/models"
)

// ResultsApp defines what the service layer needs from the history app
type ResultsApp interface {
	Record(ctx context.Context, result models.TypingResult) (bool, error)
	Recent(ctx context.Context, userID string, limit int) ([]models.TypingResult, error)
	PersonalBest(ctx context.Context, userID string, d models.Difficulty, m models.GameMode) (models.PersonalBest, bool, error)
	PersonalBests(ctx context.Context, userID string) ([]models.PersonalBest, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Standing(ctx context.Context, userID string) (models.LeaderboardEntry, bool, error)
}

// ResultsService keeps attempt history for signed in users.
type ResultsService struct {
	app      ResultsApp
	verifier Verifier
	clock    clockwork.Clock
}

func NewResultsService(app ResultsApp, verifier Verifier, clock clockwork.Clock) *ResultsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ResultsService{app: app, verifier: verifier, clock: clock}
}

// Record stores an attempt for the caller. The user id in the payload is
// ignored in favour of the verified one.
func (s *ResultsService) Record(ctx context.Context, req *connect.Request[RecordResultRequest]) (*connect.Response[RecordResultResponse], error) {
	userID, err := requireUser(ctx, s.verifier, req.Header())
	if err != nil {
		return nil, err
	}

	result := req.Msg.Result
	result.UserID = userID
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.Date.IsZero() {
		result.Date = s.clock.Now().UTC()
	}

	improved, err := s.app.Record(ctx, result)
	if err != nil {
		return nil, resultsError(err)
	}
	return connect.NewResponse(&RecordResultResponse{ID: result.ID.String(), NewPersonalBest: improved}), nil
}

func (s *ResultsService) PersonalBest(ctx context.Context, req *connect.Request[PersonalBestRequest]) (*connect.Response[PersonalBestResponse], error) {
	userID, err := requireUser(ctx, s.verifier, req.Header())
	if err != nil {
		return nil, err
	}
	pb, ok, err := s.app.PersonalBest(ctx, userID, req.Msg.Difficulty, req.Msg.Mode)
	if err != nil {
		return nil, resultsError(err)
	}
	return connect.NewResponse(&PersonalBestResponse{Found: ok, Best: pb}), nil
}

func (s *ResultsService) PersonalBests(ctx context.Context, req *connect.Request[PersonalBestsRequest]) (*connect.Response[PersonalBestsResponse], error) {
	userID, err := requireUser(ctx, s.verifier, req.Header())
	if err != nil {
		return nil, err
	}
	bests, err := s.app.PersonalBests(ctx, userID)
	if err != nil {
		return nil, resultsError(err)
	}
	return connect.NewResponse(&PersonalBestsResponse{Bests: bests}), nil
}

func (s *ResultsService) Recent(ctx context.Context, req *connect.Request[RecentResultsRequest]) (*connect.Response[RecentResultsResponse], error) {
	userID, err := requireUser(ctx, s.verifier, req.Header())
	if err != nil {
		return nil, err
	}
	results, err := s.app.Recent(ctx, userID, req.Msg.Limit)
	if err != nil {
		return nil, resultsError(err)
	}
	return connect.NewResponse(&RecentResultsResponse{Results: results}), nil
}

// Leaderboard is public. A signed in caller also gets their own rank, even
// when it falls outside the listed top.
func (s *ResultsService) Leaderboard(ctx context.Context, req *connect.Request[LeaderboardRequest]) (*connect.Response[LeaderboardResponse], error) {
	userID, err := optionalUser(ctx, s.verifier, req.Header())
	if err != nil {
		return nil, err
	}

	entries, err := s.app.Leaderboard(ctx, req.Msg.Limit)
	if err != nil {
		return nil, resultsError(err)
	}
	resp := &LeaderboardResponse{Entries: entries}
	if userID == "" {
		return connect.NewResponse(resp), nil
	}

	standing, ok, err := s.app.Standing(ctx, userID)
	if err != nil {
		return nil, resultsError(err)
	}
	if ok {
		resp.Self = &standing
	}
	return connect.NewResponse(resp), nil
}

func resultsError(err error) error {
	switch {
	case errors.Is(err, history.ErrInvalidResult):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, history.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func NewResultsServiceHandler(svc *ResultsService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	record := connect.NewUnaryHandler(ResultsServiceRecordProcedure, svc.Record, opts...)
	best := connect.NewUnaryHandler(ResultsServicePersonalBestProcedure, svc.PersonalBest, opts...)
	bests := connect.NewUnaryHandler(ResultsServicePersonalBestsProcedure, svc.PersonalBests, opts...)
	recent := connect.NewUnaryHandler(ResultsServiceRecentProcedure, svc.Recent, opts...)
	board := connect.NewUnaryHandler(ResultsServiceLeaderboardProcedure, svc.Leaderboard, opts...)
	return "/" + ResultsServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ResultsServiceRecordProcedure:
			record.ServeHTTP(w, r)
		case ResultsServicePersonalBestProcedure:
			best.ServeHTTP(w, r)
		case ResultsServicePersonalBestsProcedure:
			bests.ServeHTTP(w, r)
		case ResultsServiceRecentProcedure:
			recent.ServeHTTP(w, r)
		case ResultsServiceLeaderboardProcedure:
			board.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
