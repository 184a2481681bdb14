// Package api exposes the race collaborators (text, coach, preferences,
// results and solo usage) as connect unary services with a JSON codec.
package api

const (
	TextServiceName        = "zippy.v1.TextService"
	CoachServiceName       = "zippy.v1.CoachService"
	PreferencesServiceName = "zippy.v1.PreferencesService"
	ResultsServiceName     = "zippy.v1.ResultsService"
	UsageServiceName       = "zippy.v1.UsageService"
)

const (
	TextServiceGenerateProcedure         = "/" + TextServiceName + "/Generate"
	CoachServiceNoteProcedure            = "/" + CoachServiceName + "/Note"
	PreferencesServiceLoadProcedure      = "/" + PreferencesServiceName + "/Load"
	PreferencesServiceSaveProcedure      = "/" + PreferencesServiceName + "/Save"
	ResultsServiceRecordProcedure        = "/" + ResultsServiceName + "/Record"
	ResultsServicePersonalBestProcedure  = "/" + ResultsServiceName + "/PersonalBest"
	ResultsServicePersonalBestsProcedure = "/" + ResultsServiceName + "/PersonalBests"
	ResultsServiceRecentProcedure        = "/" + ResultsServiceName + "/Recent"
	ResultsServiceLeaderboardProcedure   = "/" + ResultsServiceName + "/Leaderboard"
	UsageServiceCheckProcedure           = "/" + UsageServiceName + "/Check"
	UsageServiceRecordProcedure          = "/" + UsageServiceName + "/Record"
)
