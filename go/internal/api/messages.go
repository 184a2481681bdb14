package api

import (
	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

type GenerateTextRequest struct {
	textgen.Request
	// Daily asks for the shared text of the current UTC day.
	Daily bool `json:"daily,omitempty"`
}

type GenerateTextResponse struct {
	Text string `json:"text"`
}

type CoachNoteRequest = textgen.CoachRequest

type CoachNoteResponse struct {
	Note string `json:"note"`
}

type LoadPreferencesRequest struct{}

type LoadPreferencesResponse struct {
	// Preferences is nil when the user never saved any.
	Preferences *models.Preferences `json:"preferences"`
}

type SavePreferencesRequest struct {
	Preferences models.Preferences `json:"preferences"`
}

type SavePreferencesResponse struct{}

type RecordResultRequest struct {
	Result models.TypingResult `json:"result"`
}

type RecordResultResponse struct {
	ID              string `json:"id"`
	NewPersonalBest bool   `json:"newPersonalBest"`
}

type PersonalBestRequest struct {
	Difficulty models.Difficulty `json:"difficulty"`
	Mode       models.GameMode   `json:"mode"`
}

type PersonalBestResponse struct {
	Found bool                `json:"found"`
	Best  models.PersonalBest `json:"best"`
}

type PersonalBestsRequest struct{}

type PersonalBestsResponse struct {
	Bests []models.PersonalBest `json:"bests"`
}

type RecentResultsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type RecentResultsResponse struct {
	Results []models.TypingResult `json:"results"`
}

type LeaderboardRequest struct {
	Limit int `json:"limit,omitempty"`
}

// LeaderboardResponse carries the caller's own standing when the request
// was signed in and the caller has recorded attempts.
type LeaderboardResponse struct {
	Entries []models.LeaderboardEntry `json:"entries"`
	Self    *models.LeaderboardEntry  `json:"self,omitempty"`
}

type UsageCheckRequest struct{}

type UsageCheckResponse struct {
	Used bool `json:"used"`
}

type UsageRecordRequest struct{}

type UsageRecordResponse struct{}
