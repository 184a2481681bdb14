package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/zippy/go/internal/api"
	"github.com/mcdev12/zippy/go/internal/auth"
	"github.com/mcdev12/zippy/go/internal/config"
	"github.com/mcdev12/zippy/go/internal/models"
	"github.com/mcdev12/zippy/go/internal/pbstore"
	"github.com/mcdev12/zippy/go/internal/race/client"
	"github.com/mcdev12/zippy/go/internal/race/reconcile"
	"github.com/mcdev12/zippy/go/internal/race/session"
	"github.com/mcdev12/zippy/go/internal/race/sim"
	"github.com/mcdev12/zippy/go/internal/textgen"
)

type raceOptions struct {
	gatewayURL string
	apiURL     string
	token      string
	online     bool
	room       string
	text       string
	startAfter time.Duration
	mode       string
	difficulty string
	opponents  int
	name       string
	wpm        float64
	accuracy   float64
	pbFile     string
}

func newRaceCmd(cfg *config.Config) *cobra.Command {
	opts := raceOptions{}

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Race headlessly at a simulated pace",
		Long: "Race against local bots, or with --online race in a gateway room.\n" +
			"Online without --room a new room is created and started after --start-after.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRace(cmd.Context(), *cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.gatewayURL, "gateway", "ws://localhost:8080/ws/race", "race gateway websocket URL")
	f.StringVar(&opts.apiURL, "api", "http://localhost:8080", "API base URL")
	f.StringVar(&opts.token, "token", os.Getenv("ZIPPY_ACCESS_TOKEN"), "access token of a signed in account")
	f.BoolVar(&opts.online, "online", false, "race other people through the gateway")
	f.StringVar(&opts.room, "room", "", "room code to join, hosts a new room when empty")
	f.StringVar(&opts.text, "text", "", "race text for a hosted room, generated when empty")
	f.DurationVar(&opts.startAfter, "start-after", 5*time.Second, "wait before starting a hosted room")
	f.StringVar(&opts.mode, "mode", string(models.GameModeSolo), "game mode")
	f.StringVar(&opts.difficulty, "difficulty", string(models.DifficultyMedium), "text and bot difficulty")
	f.IntVar(&opts.opponents, "opponents", 3, "local bot count")
	f.StringVar(&opts.name, "name", "Headless", "display name")
	f.Float64Var(&opts.wpm, "wpm", 60, "typing pace")
	f.Float64Var(&opts.accuracy, "accuracy", 0.97, "chance a keystroke is correct")
	f.StringVar(&opts.pbFile, "pb-file", defaultPBFile(), "personal best database")
	return cmd
}

func defaultPBFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "zippy-pb.db"
	}
	return filepath.Join(dir, "zippy", "pb.db")
}

func runRace(ctx context.Context, cfg config.Config, opts raceOptions) error {
	mode, err := models.ParseGameMode(opts.mode)
	if err != nil {
		return err
	}
	difficulty, err := models.ParseDifficulty(opts.difficulty)
	if err != nil {
		return err
	}

	userID, err := resolveUser(ctx, cfg, opts.token)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.pbFile), 0o755); err != nil {
		return fmt.Errorf("create pb dir: %w", err)
	}
	bests, err := pbstore.Open(opts.pbFile)
	if err != nil {
		return err
	}
	defer bests.Close()

	simCfg, err := sim.LoadConfig(cfg.SimConfigPath)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	httpClient := &http.Client{Timeout: 30 * time.Second}
	texts := api.NewTextClient(httpClient, opts.apiURL)

	selfID := userID
	if selfID == "" {
		selfID = models.GuestID(uuid.NewString()[:8])
	}
	roster := reconcile.New(selfID)

	scfg := session.DefaultConfig(mode, difficulty)
	scfg.Opponents = opts.opponents
	scfg.SelfID = selfID
	scfg.UserID = userID
	scfg.Name = opts.name

	done := make(chan session.Result, 1)
	deps := session.Deps{
		Clock:      clock,
		Rand:       newRand(),
		Texts:      texts,
		Daily:      texts.Daily(),
		Roster:     roster,
		Sim:        sim.NewRunner(clock, sim.New(simCfg, newRand()), roster),
		Coach:      api.NewCoachClient(httpClient, opts.apiURL),
		Bests:      bests,
		OnComplete: func(r session.Result) {
			select {
			case done <- r:
			default:
			}
		},
	}
	if userID != "" {
		deps.Results = api.NewResultsClient(httpClient, opts.apiURL, opts.token)
	} else {
		deps.Usage = api.NewUsageClient(httpClient, opts.apiURL)
	}

	if opts.online {
		scfg.Mode = models.GameModeCompetitive
		scfg.Competitive = models.CompetitiveMultiplayer
		return raceNetworked(ctx, opts, scfg, deps, roster, texts, done)
	}
	return raceLocal(ctx, opts, scfg, deps, bests, done)
}

func raceLocal(ctx context.Context, opts raceOptions, scfg session.Config, deps session.Deps,
	bests *pbstore.Store, done <-chan session.Result) error {
	s := session.New(scfg, deps)
	if keys, err := bests.ProblemKeys(); err == nil {
		s.SetProblemKeys(keys)
	}
	if err := s.Start(ctx); err != nil {
		if errors.Is(err, session.ErrAttemptRestricted) {
			return fmt.Errorf("%w: pass --token to race again", err)
		}
		return err
	}
	log.Info().Str("mode", string(scfg.Mode)).Int("opponents", scfg.Opponents).Msg("race started")

	typist := client.NewTypist(deps.Clock, s, opts.wpm, opts.accuracy, newRand())
	if err := typist.Run(ctx); err != nil {
		return err
	}

	res := awaitResult(ctx, done)
	if err := bests.SetProblemKeys(s.ProblemKeys()); err != nil {
		log.Warn().Err(err).Msg("could not store problem keys")
	}
	printResult(res)
	return ctx.Err()
}

func raceNetworked(ctx context.Context, opts raceOptions, scfg session.Config, deps session.Deps,
	roster *reconcile.Reconciler, texts textgen.Generator, done <-chan session.Result) error {
	self := models.Participant{ID: scfg.SelfID, Name: scfg.Name, Avatar: scfg.Avatar}

	ccfg := client.DefaultConfig(opts.gatewayURL)
	ccfg.AccessToken = opts.token
	c, err := client.Dial(ctx, ccfg, self, roster)
	if err != nil {
		return err
	}
	defer c.Close()

	deps.OnProgress = c.ReportProgress
	s := session.New(scfg, deps)
	c.Bind(s)

	typistCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	c.OnGameStart(func(text string) {
		log.Info().Int("chars", len([]rune(text))).Msg("race started")
		go func() {
			_ = client.NewTypist(deps.Clock, s, opts.wpm, opts.accuracy, newRand()).Run(typistCtx)
		}()
	})

	if opts.room == "" {
		if err := c.CreateRoom(); err != nil {
			return err
		}
	} else if err := c.JoinRoom(opts.room); err != nil {
		return err
	}

	var roomID string
	select {
	case roomID = <-c.Joined():
	case err := <-c.Errors():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Printf("room %s\n", roomID)

	if opts.room == "" {
		select {
		case <-time.After(opts.startAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
		text := opts.text
		if text == "" {
			text, err = texts.Generate(ctx, textgen.Request{Difficulty: scfg.Difficulty, Category: scfg.Category})
			if err != nil {
				return err
			}
		}
		if err := c.StartGame(text); err != nil {
			return err
		}
	}

	for {
		select {
		case res := <-done:
			printResult(res)
			_ = c.LeaveRoom()
			return nil
		case err := <-c.Errors():
			log.Warn().Err(err).Str("room_id", roomID).Msg("gateway error")
		case <-c.Done():
			return client.ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// newRand gives each goroutine its own source; *rand.Rand is not safe for
// concurrent use.
func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// resolveUser verifies token so results are filed under the right account.
func resolveUser(ctx context.Context, cfg config.Config, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	if !cfg.AuthEnabled() {
		return "", errors.New("--token needs SUPABASE_URL and SUPABASE_ANON_KEY")
	}
	return auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey).VerifyAccessToken(ctx, token)
}

func awaitResult(ctx context.Context, done <-chan session.Result) session.Result {
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return session.Result{}
	}
}

func printResult(res session.Result) {
	fmt.Printf("wpm %d  accuracy %d%%  errors %d  time %.1fs\n", res.WPM, res.Accuracy, res.Errors, res.Time)
	if res.NewPersonalBest {
		fmt.Println("new personal best")
	}
	if res.CoachNote != "" {
		fmt.Println(res.CoachNote)
	}
}
