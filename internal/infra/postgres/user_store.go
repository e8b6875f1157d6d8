package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"roots-quiz-service/internal/domain"
)

// maxUpdateAttempts bounds optimistic retries for a single Update call.
const maxUpdateAttempts = 5

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string              `bun:"id,pk,type:uuid"`
	Email        string              `bun:"email,notnull,unique"`
	PasswordHash string              `bun:"password_hash,notnull"`
	Federated    bool                `bun:"federated,notnull"`
	Role         string              `bun:"role,notnull"`
	Points       int                 `bun:"points,notnull"`
	CorrectList  domain.CorrectList  `bun:"correct_list,type:jsonb,notnull"`
	WrongList    map[string]int      `bun:"wrong_list,type:jsonb,notnull"`
	QuizResults  []domain.QuizResult `bun:"quiz_results,type:jsonb,notnull"`
	Badges       []string            `bun:"badges,type:jsonb,notnull"`
	Banned       bool                `bun:"banned,notnull"`
	Version      int64               `bun:"version,notnull"`
	CreatedAt    time.Time           `bun:"created_at,notnull"`
}

func toRow(u domain.User) *userRow {
	u = u.Clone()
	return &userRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Federated:    u.Federated,
		Role:         u.Role,
		Points:       u.Points,
		CorrectList:  u.CorrectList,
		WrongList:    u.WrongList,
		QuizResults:  u.QuizResults,
		Badges:       u.Badges,
		Banned:       u.Banned,
		Version:      u.Version,
		CreatedAt:    u.CreatedAt,
	}
}

func (r *userRow) toDomain() domain.User {
	u := domain.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Federated:    r.Federated,
		Role:         r.Role,
		Points:       r.Points,
		CorrectList:  r.CorrectList,
		WrongList:    r.WrongList,
		QuizResults:  r.QuizResults,
		Badges:       r.Badges,
		Banned:       r.Banned,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
	}
	return u.Clone()
}

// UserStore keeps user progress documents in the users table. Updates use
// optimistic concurrency on the version column.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	row := new(userRow)
	err := s.db.NewSelect().Model(row).Where("email = ?", email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, domain.StoreError("find user", err)
	}
	return row.toDomain(), nil
}

func (s *UserStore) Insert(ctx context.Context, user domain.User) (string, error) {
	row := toRow(user)
	row.Version = 1
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return "", domain.ErrUserExists
		}
		return "", domain.StoreError("insert user", err)
	}
	return row.ID, nil
}

func (s *UserStore) Update(ctx context.Context, email string, fn func(*domain.User) error) (domain.User, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.FindByEmail(ctx, email)
		if err != nil {
			return domain.User{}, err
		}

		next := current.Clone()
		if err := fn(&next); err != nil {
			return domain.User{}, err
		}

		row := toRow(next)
		row.Version = current.Version + 1
		res, err := s.db.NewUpdate().
			Model(row).
			Column("password_hash", "federated", "role", "points", "correct_list", "wrong_list", "quiz_results", "badges", "banned", "version").
			WherePK().
			Where("version = ?", current.Version).
			Exec(ctx)
		if err != nil {
			return domain.User{}, domain.StoreError("update user", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return row.toDomain(), nil
		}
	}
	return domain.User{}, domain.ErrVersionConflict
}

func (s *UserStore) DeleteByEmail(ctx context.Context, email string) error {
	res, err := s.db.NewDelete().Model((*userRow)(nil)).Where("email = ?", email).Exec(ctx)
	if err != nil {
		return domain.StoreError("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) TopByPoints(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var rows []userRow
	err := s.db.NewSelect().
		Model(&rows).
		Column("email", "points").
		OrderExpr("points DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, domain.StoreError("top users", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.LeaderboardEntry{Email: r.Email, Points: r.Points})
	}
	return entries, nil
}

// AppendQuizResult pushes onto quiz_results in one statement.
func (s *UserStore) AppendQuizResult(ctx context.Context, email string, result domain.QuizResult) error {
	data, err := json.Marshal([]domain.QuizResult{result})
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("quiz_results = quiz_results || ?::jsonb", string(data)).
		Set("version = version + 1").
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return domain.StoreError("append quiz result", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
