// Package domain defines the core models of the assistant: user preferences,
// chat messages with their scripture references, quiz questions and the
// small persisted records (usage counter, quiz status). The persistence rows
// used by GORM live here as well and are shared by the repo and service layers.
package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// FaithStatus describes where the user stands in their faith journey. It
// tunes the tone of pastoral answers.
type FaithStatus string

const (
	FaithBeliever FaithStatus = "Believer"
	FaithSeeker   FaithStatus = "Seeker"
	FaithSkeptic  FaithStatus = "Skeptic/Curious"
	FaithLeader   FaithStatus = "Church Leader/Pastor"
)

// FaithStatuses lists the accepted values in display order.
var FaithStatuses = []FaithStatus{FaithBeliever, FaithSeeker, FaithSkeptic, FaithLeader}

// Valid reports whether f is one of the known statuses.
func (f FaithStatus) Valid() bool {
	for _, s := range FaithStatuses {
		if s == f {
			return true
		}
	}
	return false
}

// UserPreferences is the profile collected during onboarding.
type UserPreferences struct {
	Name         string      `json:"name"`
	IsCompleted  bool        `json:"isCompleted"`
	FaithStatus  FaithStatus `json:"faithStatus"`
	Denomination string      `json:"denomination"`
	BibleVersion string      `json:"bibleVersion"`
	Language     string      `json:"language"`
	IsPro        bool        `json:"isPro"`
}

// DefaultPreferences returns the values the onboarding flow starts from.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		FaithStatus:  FaithSeeker,
		Denomination: "Non-Denominational",
		BibleVersion: "NIV",
		Language:     "English",
	}
}

// Validate checks the fields required before any prompt can be built.
func (p UserPreferences) Validate() error {
	if !p.FaithStatus.Valid() {
		return errors.New("faithStatus must be one of: Believer, Seeker, Skeptic/Curious, Church Leader/Pastor")
	}
	if strings.TrimSpace(p.Denomination) == "" {
		return errors.New("denomination must not be empty")
	}
	if strings.TrimSpace(p.BibleVersion) == "" {
		return errors.New("bibleVersion must not be empty")
	}
	if strings.TrimSpace(p.Language) == "" {
		return errors.New("language must not be empty")
	}
	return nil
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// BibleReference is a cited passage. Text is shown verbatim as returned by
// the model; Chapter, when present, names the whole chapter to stream.
type BibleReference struct {
	Ref     string `json:"ref"`
	Text    string `json:"text"`
	Chapter string `json:"chapter,omitempty"`
}

// ChapterRef returns the chapter to open for this reference: the explicit
// chapter when set, otherwise the part of Ref before the verse separator.
func (r BibleReference) ChapterRef() string {
	if c := strings.TrimSpace(r.Chapter); c != "" {
		return c
	}
	ref, _, _ := strings.Cut(r.Ref, ":")
	return strings.TrimSpace(ref)
}

// ChatMessage is one entry of a conversation log. Messages are never mutated
// once appended.
type ChatMessage struct {
	ID         string           `json:"id"`
	Role       Role             `json:"role"`
	Text       string           `json:"text"`
	Timestamp  int64            `json:"timestamp"`
	FollowUps  []string         `json:"followUps,omitempty"`
	References []BibleReference `json:"references,omitempty"`
}

// NewMessage builds a message stamped at now. The ID is the unix-millisecond
// time plus offset, so a reply created in the same instant as its prompt
// (offset 1) still sorts after it.
func NewMessage(role Role, text string, now time.Time, offset int64) ChatMessage {
	ms := now.UnixMilli() + offset
	return ChatMessage{
		ID:        strconv.FormatInt(ms, 10),
		Role:      role,
		Text:      text,
		Timestamp: ms,
	}
}

// QuizQuestion is one multiple-choice trivia question.
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
	Reference    string   `json:"reference"`
}

// QuizOptionCount is the number of options every question carries.
const QuizOptionCount = 4

// Valid reports whether the question has four options and a correct index
// that points at one of them.
func (q QuizQuestion) Valid() bool {
	return strings.TrimSpace(q.Question) != "" &&
		len(q.Options) == QuizOptionCount &&
		q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}

// QuizStatus records whether today's quiz has been played.
type QuizStatus struct {
	Date   string `json:"date"`
	Score  int    `json:"score"`
	Played bool   `json:"played"`
}

// UsageData is the daily request counter of the rate limiter.
type UsageData struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DateLayout is the calendar-date format used by persisted records.
const DateLayout = "2006-01-02"

// Surface names one of the three chat conversations.
type Surface string

const (
	SurfaceSearch Surface = "search"
	SurfacePastor Surface = "pastor"
	SurfacePrayer Surface = "prayer"
)

// Surfaces lists every chat surface.
var Surfaces = []Surface{SurfaceSearch, SurfacePastor, SurfacePrayer}

// ParseSurface maps a case-insensitive name to a Surface.
func ParseSurface(s string) (Surface, bool) {
	switch Surface(strings.ToLower(strings.TrimSpace(s))) {
	case SurfaceSearch:
		return SurfaceSearch, true
	case SurfacePastor:
		return SurfacePastor, true
	case SurfacePrayer:
		return SurfacePrayer, true
	}
	return "", false
}

// KVEntry is a row of the persisted key-value store.
type KVEntry struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Value     string    `gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoUpdateTime"`
}

// TableName implements the GORM tabler interface.
func (KVEntry) TableName() string { return "kv_entries" }

// MessageRecord is the persisted form of a ChatMessage.
type MessageRecord struct {
	ID         string         `gorm:"type:TEXT NOT NULL;primaryKey"`
	SessionID  string         `gorm:"type:TEXT NOT NULL;index:idx_msg_session_surface,priority:1"`
	Surface    string         `gorm:"type:TEXT NOT NULL;index:idx_msg_session_surface,priority:2"`
	Seq        int64          `gorm:"type:INTEGER NOT NULL;index:idx_msg_session_surface,priority:3"`
	MessageID  string         `gorm:"type:TEXT NOT NULL"`
	Role       string         `gorm:"type:TEXT NOT NULL"`
	Text       string         `gorm:"type:TEXT NOT NULL"`
	Timestamp  int64          `gorm:"type:INTEGER NOT NULL"`
	FollowUps  datatypes.JSON `gorm:"type:TEXT"`
	References datatypes.JSON `gorm:"type:TEXT"`
	CreatedAt  time.Time      `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (MessageRecord) TableName() string { return "chat_messages" }
