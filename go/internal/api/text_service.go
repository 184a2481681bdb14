package api

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

// TextService hands race text to clients.
type TextService struct {
	texts textgen.Generator
	daily textgen.Generator
}

// NewTextService serves texts from texts, and daily requests from daily
// when it is not nil.
func NewTextService(texts, daily textgen.Generator) *TextService {
	return &TextService{texts: texts, daily: daily}
}

func (s *TextService) Generate(ctx context.Context, req *connect.Request[GenerateTextRequest]) (*connect.Response[GenerateTextResponse], error) {
	in := req.Msg.Request
	if in.Difficulty != "" {
		if _, err := models.ParseDifficulty(string(in.Difficulty)); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
	}

	gen := s.texts
	if req.Msg.Daily && s.daily != nil {
		gen = s.daily
	}
	text, err := gen.Generate(ctx, in)
	if err != nil {
		log.Warn().Err(err).Bool("daily", req.Msg.Daily).Msg("text generation failed")
		if ctx.Err() != nil {
			return nil, connect.NewError(connect.CodeCanceled, ctx.Err())
		}
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewResponse(&GenerateTextResponse{Text: text}), nil
}

// CoachService writes feedback notes. It never fails.
type CoachService struct {
	coach *textgen.Coach
}

func NewCoachService(coach *textgen.Coach) *CoachService {
	return &CoachService{coach: coach}
}

func (s *CoachService) Note(ctx context.Context, req *connect.Request[CoachNoteRequest]) (*connect.Response[CoachNoteResponse], error) {
	return connect.NewResponse(&CoachNoteResponse{Note: s.coach.Note(ctx, *req.Msg)}), nil
}

// NewTextServiceHandler mounts TextService under its service path.
func NewTextServiceHandler(svc *TextService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	generate := connect.NewUnaryHandler(TextServiceGenerateProcedure, svc.Generate, opts...)
	return "/" + TextServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case TextServiceGenerateProcedure:
			generate.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// NewCoachServiceHandler mounts CoachService under its service path.
func NewCoachServiceHandler(svc *CoachService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	note := connect.NewUnaryHandler(CoachServiceNoteProcedure, svc.Note, opts...)
	return "/" + CoachServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case CoachServiceNoteProcedure:
			note.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// isUnavailable reports whether a client error means no text could be made.
func isUnavailable(err error) bool {
	return connect.CodeOf(err) == connect.CodeUnavailable || errors.Is(err, textgen.ErrGenerationUnavailable)
}
