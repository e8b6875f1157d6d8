package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"roots-quiz-service/internal/domain"
)

// QuestionStore reads and writes the latin_roots table.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

const questionColumns = `id, root, definition, coalesce(difficulty, ''), coalesce(topic, '')`

func (s *QuestionStore) SampleRandomQuestion(ctx context.Context) (domain.Question, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+questionColumns+`
		FROM latin_roots
		OFFSET floor(random() * (SELECT count(*) FROM latin_roots))::bigint
		LIMIT 1`)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrNoQuestions
	}
	if err != nil {
		return domain.Question{}, domain.StoreError("sample question", err)
	}
	return q, nil
}

func (s *QuestionStore) SampleDistinctWrongAnswers(ctx context.Context, excludeCorrect string, exclude []string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	if exclude == nil {
		exclude = []string{}
	}
	rows, err := s.pool.Query(ctx, `
		SELECT wrong_answer
		FROM (
			SELECT DISTINCT definition AS wrong_answer
			FROM latin_roots
			WHERE definition <> $1
			AND NOT (definition = ANY($2))
		) AS candidates
		ORDER BY random()
		LIMIT $3`, excludeCorrect, exclude, limit)
	if err != nil {
		return nil, domain.StoreError("sample wrong answers", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var answer string
		if err := rows.Scan(&answer); err != nil {
			return nil, domain.StoreError("scan wrong answer", err)
		}
		out = append(out, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("sample wrong answers", err)
	}
	return out, nil
}

func (s *QuestionStore) InsertQuestion(ctx context.Context, q domain.Question) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO latin_roots (root, definition, difficulty, topic)
		VALUES ($1, $2, nullif($3, ''), nullif($4, ''))
		RETURNING id`, q.Prompt, q.CorrectAnswer, q.Difficulty, q.Topic).Scan(&id)
	if err != nil {
		return 0, domain.StoreError("insert question", err)
	}
	return id, nil
}

func (s *QuestionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM latin_roots`).Scan(&n); err != nil {
		return 0, domain.StoreError("count questions", err)
	}
	return n, nil
}

func (s *QuestionStore) Search(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	var (
		where []string
		args  []any
	)
	if filter.Keyword != "" {
		args = append(args, filter.Keyword)
		where = append(where, fmt.Sprintf("root ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if filter.Difficulty != "" {
		args = append(args, filter.Difficulty)
		where = append(where, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	if filter.Topic != "" {
		args = append(args, filter.Topic)
		where = append(where, fmt.Sprintf("topic = $%d", len(args)))
	}

	query := `SELECT ` + questionColumns + ` FROM latin_roots`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError("search questions", err)
	}
	defer rows.Close()

	out := []domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, domain.StoreError("scan question", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("search questions", err)
	}
	return out, nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var q domain.Question
	err := row.Scan(&q.ID, &q.Prompt, &q.CorrectAnswer, &q.Difficulty, &q.Topic)
	return q, err
}
