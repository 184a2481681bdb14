package api

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{WithJSON()}, opts...)
}

func withToken[T any](req *connect.Request[T], token string) *connect.Request[T] {
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return req
}

// TextClient calls TextService. It satisfies textgen.Generator.
type TextClient struct {
	generate *connect.Client[GenerateTextRequest, GenerateTextResponse]
	daily    bool
}

func NewTextClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TextClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &TextClient{
		generate: connect.NewClient[GenerateTextRequest, GenerateTextResponse](
			httpClient, baseURL+TextServiceGenerateProcedure, clientOptions(opts)...),
	}
}

// Daily returns a client that asks for the shared daily text.
func (c *TextClient) Daily() *TextClient {
	return &TextClient{generate: c.generate, daily: true}
}

// Generate implements textgen.Generator. Server side generation failures
// come back wrapping textgen.ErrGenerationUnavailable.
func (c *TextClient) Generate(ctx context.Context, req textgen.Request) (string, error) {
	res, err := c.generate.CallUnary(ctx, connect.NewRequest(&GenerateTextRequest{Request: req, Daily: c.daily}))
	if err != nil {
		if isUnavailable(err) {
			return "", fmt.Errorf("%w: %v", textgen.ErrGenerationUnavailable, err)
		}
		return "", err
	}
	return res.Msg.Text, nil
}

// CoachClient calls CoachService.
type CoachClient struct {
	note *connect.Client[CoachNoteRequest, CoachNoteResponse]
}

func NewCoachClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CoachClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &CoachClient{
		note: connect.NewClient[CoachNoteRequest, CoachNoteResponse](
			httpClient, baseURL+CoachServiceNoteProcedure, clientOptions(opts)...),
	}
}

// Note never fails; transport errors yield the canned note.
func (c *CoachClient) Note(ctx context.Context, req textgen.CoachRequest) string {
	res, err := c.note.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil || res.Msg.Note == "" {
		log.Debug().Err(err).Msg("coach call failed")
		return textgen.CannedCoachNote
	}
	return res.Msg.Note
}

// ResultsClient calls ResultsService as the owner of token.
type ResultsClient struct {
	token  string
	record *connect.Client[RecordResultRequest, RecordResultResponse]
	best   *connect.Client[PersonalBestRequest, PersonalBestResponse]
	recent *connect.Client[RecentResultsRequest, RecentResultsResponse]
	board  *connect.Client[LeaderboardRequest, LeaderboardResponse]
}

func NewResultsClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *ResultsClient {
	baseURL = strings.TrimRight(baseURL, "/")
	o := clientOptions(opts)
	return &ResultsClient{
		token:  token,
		record: connect.NewClient[RecordResultRequest, RecordResultResponse](httpClient, baseURL+ResultsServiceRecordProcedure, o...),
		best:   connect.NewClient[PersonalBestRequest, PersonalBestResponse](httpClient, baseURL+ResultsServicePersonalBestProcedure, o...),
		recent: connect.NewClient[RecentResultsRequest, RecentResultsResponse](httpClient, baseURL+ResultsServiceRecentProcedure, o...),
		board:  connect.NewClient[LeaderboardRequest, LeaderboardResponse](httpClient, baseURL+ResultsServiceLeaderboardProcedure, o...),
	}
}

// Record stores result and reports whether it set a personal best.
func (c *ResultsClient) Record(ctx context.Context, result models.TypingResult) (bool, error) {
	res, err := c.record.CallUnary(ctx, withToken(connect.NewRequest(&RecordResultRequest{Result: result}), c.token))
	if err != nil {
		return false, err
	}
	return res.Msg.NewPersonalBest, nil
}

// RecordAttempt satisfies the session's result store.
func (c *ResultsClient) RecordAttempt(ctx context.Context, result models.TypingResult) error {
	_, err := c.Record(ctx, result)
	return err
}

func (c *ResultsClient) PersonalBest(ctx context.Context, d models.Difficulty, m models.GameMode) (models.PersonalBest, bool, error) {
	res, err := c.best.CallUnary(ctx, withToken(connect.NewRequest(&PersonalBestRequest{Difficulty: d, Mode: m}), c.token))
	if err != nil {
		return models.PersonalBest{}, false, err
	}
	return res.Msg.Best, res.Msg.Found, nil
}

func (c *ResultsClient) Recent(ctx context.Context, limit int) ([]models.TypingResult, error) {
	res, err := c.recent.CallUnary(ctx, withToken(connect.NewRequest(&RecentResultsRequest{Limit: limit}), c.token))
	if err != nil {
		return nil, err
	}
	return res.Msg.Results, nil
}

// Leaderboard lists the top racers. self is nil for an anonymous client or
// a user with no recorded attempts.
func (c *ResultsClient) Leaderboard(ctx context.Context, limit int) (entries []models.LeaderboardEntry, self *models.LeaderboardEntry, err error) {
	res, err := c.board.CallUnary(ctx, withToken(connect.NewRequest(&LeaderboardRequest{Limit: limit}), c.token))
	if err != nil {
		return nil, nil, err
	}
	return res.Msg.Entries, res.Msg.Self, nil
}

// UsageClient calls UsageService. It satisfies the session's solo usage gate.
type UsageClient struct {
	check  *connect.Client[UsageCheckRequest, UsageCheckResponse]
	record *connect.Client[UsageRecordRequest, UsageRecordResponse]
}

func NewUsageClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *UsageClient {
	baseURL = strings.TrimRight(baseURL, "/")
	o := clientOptions(opts)
	return &UsageClient{
		check:  connect.NewClient[UsageCheckRequest, UsageCheckResponse](httpClient, baseURL+UsageServiceCheckProcedure, o...),
		record: connect.NewClient[UsageRecordRequest, UsageRecordResponse](httpClient, baseURL+UsageServiceRecordProcedure, o...),
	}
}

func (c *UsageClient) HasUsed(ctx context.Context) (bool, error) {
	res, err := c.check.CallUnary(ctx, connect.NewRequest(&UsageCheckRequest{}))
	if err != nil {
		return false, err
	}
	return res.Msg.Used, nil
}

func (c *UsageClient) Record(ctx context.Context) error {
	_, err := c.record.CallUnary(ctx, connect.NewRequest(&UsageRecordRequest{}))
	return err
}
