package api

import (
	"github.com/ashureev/secretlab/internal/domain"
)

// Messages rendered into the challenge view.
const (
	MsgSpoilsDisabledCTF    = "Spoils are disabled in CTF mode"
	MsgSpoilsDisabledConfig = "Spoils are disabled in the configuration"
	MsgCompletedAlready     = "This exercise is already completed"
	MsgCTFInfoRemote        = "You are playing in CTF Mode where you need to give your answer once more to %s if it is correct. We have to do this as you can otherwise reverse engineer our challenge flag generation process after completing the first 8 challenges"
	MsgCTFInfoLocal         = "You are playing in CTF Mode, please submit the flag you receive after solving this challenge to your CTFD/Facebook CTF instance"
)

// ChallengeInfo is the display data of a challenge.
type ChallengeInfo struct {
	ID                   int                      `json:"id"`
	Name                 string                   `json:"name"`
	Title                string                   `json:"title"`
	Points               int                      `json:"points"`
	Enabled              bool                     `json:"enabled"`
	Entry                bool                     `json:"entry"`
	RequiredEnvironments []domain.EnvironmentKind `json:"requiredEnvironments"`
	Explanation          string                   `json:"explanation"`
	Hint                 string                   `json:"hint,omitempty"`
	Reason               string                   `json:"reason,omitempty"`
}

// ChallengeView is the view model of the challenge page. AnswerCorrect,
// AnswerIncorrect and DisabledNotice are mutually exclusive.
type ChallengeView struct {
	Challenge         ChallengeInfo        `json:"challenge"`
	Form              domain.ChallengeForm `json:"challengeForm"`
	AnswerCorrect     string               `json:"answerCorrect,omitempty"`
	AnswerIncorrect   string               `json:"answerIncorrect,omitempty"`
	DisabledNotice    string               `json:"disabledNotice,omitempty"`
	CTFInfo           string               `json:"ctfInfo,omitempty"`
	Notice            string               `json:"notice,omitempty"`
	HintsEnabled      bool                 `json:"hintsEnabled"`
	ReasonEnabled     bool                 `json:"reasonEnabled"`
	TotalPoints       int                  `json:"totalPoints"`
	Progress          string               `json:"progress"`
	ProgressPercent   float64              `json:"progressPercent"`
	CompletedAlready  string               `json:"challengeCompletedAlready,omitempty"`
	MissingEnvWarning string               `json:"missingEnvWarning,omitempty"`
	AllCompleted      bool                 `json:"allCompleted"`
}

// SpoilerView is returned by the spoil route.
type SpoilerView struct {
	Spoiler domain.Spoiler `json:"spoiler"`
}

// ScorecardView summarizes progress over all challenges.
type ScorecardView struct {
	TotalPoints     int              `json:"totalPoints"`
	Progress        string           `json:"progress"`
	ProgressPercent float64          `json:"progressPercent"`
	AllCompleted    bool             `json:"allCompleted"`
	Challenges      []ScorecardEntry `json:"challenges"`
}

// ScorecardEntry is one row of the scorecard summary.
type ScorecardEntry struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Enabled   bool   `json:"enabled"`
	Completed bool   `json:"completed"`
	Points    int    `json:"points"`
}
