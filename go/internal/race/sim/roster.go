package sim

import (
	"fmt"

	"github.com/mcdev12/zippy/go/internal/models"
)

const (
	GhostID     = "ghost"
	TargetBotID = "target-bot"
	botIDPrefix = "bot-"

	// MaxOpponentBots is how many named opponents exist.
	MaxOpponentBots = 5
)

var opponents = []struct{ name, avatar string }{
	{"Alex", "🤖"},
	{"Jordan", "😎"},
	{"Riley", "🦊"},
	{"Skyler", "🐱"},
	{"Morgan", "🐶"},
}

// Ghost is the replay of the stored personal best.
func Ghost() models.Participant {
	return models.Participant{ID: GhostID, Name: "Personal Best", Avatar: "👻", IsGhost: true}
}

// TargetBot races at the fixed target pace.
func TargetBot() models.Participant {
	return models.Participant{ID: TargetBotID, Name: "Target WPM", Avatar: "🎯", IsBot: true}
}

// OpponentBots returns the first n named opponents, clamped to what exists.
func OpponentBots(n int) []models.Participant {
	if n > MaxOpponentBots {
		n = MaxOpponentBots
	}
	if n < 0 {
		n = 0
	}
	bots := make([]models.Participant, 0, n)
	for i := 0; i < n; i++ {
		bots = append(bots, models.Participant{
			ID:     fmt.Sprintf("%s%d", botIDPrefix, i),
			Name:   opponents[i].name,
			Avatar: opponents[i].avatar,
			IsBot:  true,
		})
	}
	return bots
}
