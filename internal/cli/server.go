package cli

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"roots-quiz-service/internal/app"
	"roots-quiz-service/internal/auth"
	"roots-quiz-service/internal/config"
	"roots-quiz-service/internal/domain"
	"roots-quiz-service/internal/infra/memory"
	"roots-quiz-service/internal/infra/postgres"
	redisinfra "roots-quiz-service/internal/infra/redis"
	"roots-quiz-service/internal/mailer"
	transport "roots-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type storage struct {
	questions app.QuestionStore
	users     app.UserStore
	ranking   memory.RankingLoader
	close     func()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	tokens, err := auth.NewManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.ResetSecret,
		config.TTLDuration(cfg.Auth.TokenTTL, time.Hour),
		config.TTLDuration(cfg.Auth.ResetTTL, 15*time.Minute),
	)
	if err != nil {
		return err
	}

	var mail app.Mailer = mailer.Log{}
	if cfg.Mail.SendGridKey != "" {
		mail = mailer.NewSendGrid(cfg.Mail.SendGridKey, cfg.Mail.From, cfg.Mail.FromName)
	} else {
		log.Printf("sendgrid key not configured, mail will only be logged")
	}

	hub := app.NewHub()
	leaderboardTTL := config.TTLDuration(cfg.Quiz.LeaderboardTTL, 30*time.Second)

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()

	var leaderboard app.LeaderboardRepository
	var notifier app.Notifier = hub
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}

		leaderboard = redisinfra.NewLeaderboardCache(redisClient, store.ranking, cfg.Quiz.LeaderboardSize, leaderboardTTL)
		broadcaster := redisinfra.NewBroadcaster(redisClient, cfg.Redis.Channel)
		notifier = broadcaster

		ready := make(chan struct{})
		go func() {
			if err := broadcaster.Relay(relayCtx, hub, ready); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("event relay stopped: %v", err)
			}
		}()
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			log.Printf("event relay not ready yet, continuing")
		}
	} else {
		leaderboard = memory.NewLeaderboardCache(store.ranking, cfg.Quiz.LeaderboardSize, leaderboardTTL)
	}

	quiz := app.NewQuizService(store.questions, store.users, leaderboard, notifier)
	accounts := app.NewAccountService(store.users, tokens, mail, leaderboard, notifier, cfg.Auth.AdminEmails)
	api := transport.NewAPI(quiz, accounts, tokens, hub)

	if n, err := quiz.QuestionCount(ctx); err != nil {
		log.Printf("count questions: %v", err)
	} else {
		log.Printf("%d quiz questions available", n)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStorage connects to Postgres when configured and falls back to the
// in-memory stores seeded with sample roots.
func openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	if cfg.Postgres.URL == "" {
		log.Printf("postgres url not configured, using in-memory storage")
		users := memory.NewUserStore()
		return storage{
			questions: memory.NewQuestionStore(sampleQuestions()...),
			users:     users,
			ranking:   users,
			close:     func() {},
		}, nil
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return storage{}, err
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())

	users := postgres.NewUserStore(db)
	return storage{
		questions: postgres.NewQuestionStore(pool),
		users:     users,
		ranking:   users,
		close: func() {
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

// sampleQuestions seeds the in-memory store so the quiz works without a database.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "bene", CorrectAnswer: "well", Difficulty: "easy", Topic: "qualities"},
		{Prompt: "aqua", CorrectAnswer: "water", Difficulty: "easy", Topic: "nature"},
		{Prompt: "terra", CorrectAnswer: "earth", Difficulty: "easy", Topic: "nature"},
		{Prompt: "sol", CorrectAnswer: "sun", Difficulty: "easy", Topic: "nature"},
		{Prompt: "luna", CorrectAnswer: "moon", Difficulty: "easy", Topic: "nature"},
		{Prompt: "amor", CorrectAnswer: "love", Difficulty: "medium", Topic: "feelings"},
		{Prompt: "stella", CorrectAnswer: "star", Difficulty: "medium", Topic: "nature"},
		{Prompt: "lux", CorrectAnswer: "light", Difficulty: "medium", Topic: "nature"},
		{Prompt: "scrib", CorrectAnswer: "write", Difficulty: "hard", Topic: "actions"},
		{Prompt: "port", CorrectAnswer: "carry", Difficulty: "hard", Topic: "actions"},
	}
}
