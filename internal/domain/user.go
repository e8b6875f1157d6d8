package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Scoring constants.
const (
	CorrectReward    = 5
	IncorrectPenalty = 2
	MasteryThreshold = 3
)

// User is the progress document kept per account.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Federated    bool           `json:"federated"`
	Role         string         `json:"role"`
	Points       int            `json:"points"`
	CorrectList  CorrectList    `json:"correctList"`
	WrongList    map[string]int `json:"wrongList"`
	QuizResults  []QuizResult   `json:"quizResults"`
	Badges       []string       `json:"badges"`
	Banned       bool           `json:"banned"`
	Version      int64          `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// NewUser returns a user with empty progress.
func NewUser(id, email, passwordHash, role string, now time.Time) User {
	return User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CorrectList:  CorrectList{},
		WrongList:    map[string]int{},
		QuizResults:  []QuizResult{},
		Badges:       []string{},
		CreatedAt:    now,
	}
}

// ApplyAnswer runs the mastery state machine for word and updates points.
// It returns the new point total.
func (u *User) ApplyAnswer(word string, correct bool) int {
	if u.CorrectList == nil {
		u.CorrectList = CorrectList{}
	}
	if u.WrongList == nil {
		u.WrongList = map[string]int{}
	}

	delta := -IncorrectPenalty
	if correct {
		delta = CorrectReward
		u.CorrectList.advance(word)
		delete(u.WrongList, word)
	} else {
		// A miss never touches mastery progress.
		u.WrongList[word]++
	}

	u.Points += delta
	if u.Points < 0 {
		u.Points = 0
	}
	return u.Points
}

// AddBadge adds badge unless the user already holds it.
func (u *User) AddBadge(badge string) BadgeOutcome {
	for _, b := range u.Badges {
		if b == badge {
			return BadgeAlreadyPresent
		}
	}
	u.Badges = append(u.Badges, badge)
	return BadgeAwarded
}

// Analytics derives totals and the trailing streak of correct results.
func (u *User) Analytics() Analytics {
	a := Analytics{TotalQuizzes: len(u.QuizResults)}
	for _, r := range u.QuizResults {
		if r.Correct {
			a.CorrectAnswers++
		} else {
			a.IncorrectAnswers++
		}
	}
	for i := len(u.QuizResults) - 1; i >= 0 && u.QuizResults[i].Correct; i-- {
		a.Streak++
	}
	return a
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (u User) Clone() User {
	out := u
	out.CorrectList = make(CorrectList, len(u.CorrectList))
	for k, v := range u.CorrectList {
		out.CorrectList[k] = v
	}
	out.WrongList = make(map[string]int, len(u.WrongList))
	for k, v := range u.WrongList {
		out.WrongList[k] = v
	}
	out.QuizResults = append([]QuizResult{}, u.QuizResults...)
	out.Badges = append([]string{}, u.Badges...)
	return out
}

// MasteryEntry is either Counting (Mastered false, Count < MasteryThreshold)
// or Mastered.
type MasteryEntry struct {
	Word     string
	Count    int
	Mastered bool
}

// CorrectList maps a word to its mastery state.
//
// On the wire it is a JSON array mixing {"word","count"} objects for words
// still being counted and bare strings for mastered words.
type CorrectList map[string]MasteryEntry

func (c CorrectList) advance(word string) {
	entry, ok := c[word]
	switch {
	case ok && entry.Mastered:
		return
	case !ok:
		entry = MasteryEntry{Word: word}
	}
	entry.Count++
	if entry.Count >= MasteryThreshold {
		entry = MasteryEntry{Word: word, Mastered: true}
	}
	c[word] = entry
}

// IsMastered reports whether word has been promoted.
func (c CorrectList) IsMastered(word string) bool {
	return c[word].Mastered
}

type countingJSON struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

func (c CorrectList) MarshalJSON() ([]byte, error) {
	words := make([]string, 0, len(c))
	for w := range c {
		words = append(words, w)
	}
	sort.Strings(words)

	items := make([]any, 0, len(words))
	for _, w := range words {
		entry := c[w]
		if entry.Mastered {
			items = append(items, w)
		} else {
			items = append(items, countingJSON{Word: w, Count: entry.Count})
		}
	}
	return json.Marshal(items)
}

func (c *CorrectList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("correct list: %w", err)
	}
	out := make(CorrectList, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var word string
			if err := json.Unmarshal(item, &word); err != nil {
				return fmt.Errorf("correct list: %w", err)
			}
			out[word] = MasteryEntry{Word: word, Mastered: true}
			continue
		}
		var counting countingJSON
		if err := json.Unmarshal(item, &counting); err != nil {
			return fmt.Errorf("correct list: %w", err)
		}
		if prev, ok := out[counting.Word]; ok && prev.Mastered {
			continue
		}
		if counting.Count >= MasteryThreshold {
			out[counting.Word] = MasteryEntry{Word: counting.Word, Mastered: true}
			continue
		}
		out[counting.Word] = MasteryEntry{Word: counting.Word, Count: counting.Count}
	}
	*c = out
	return nil
}
