package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/ashureev/secretlab/internal/ctf"
	"github.com/ashureev/secretlab/internal/domain"
	"github.com/ashureev/secretlab/internal/scoring"
	"github.com/go-chi/chi/v5"
)

// maxFormBytes bounds submitted answers.
const maxFormBytes = 64 << 10

// Scores is the scorecard as seen by the controller.
type Scores interface {
	Reset(ctx context.Context, c *domain.Challenge) error
	Completed(c *domain.Challenge) bool
	Entry(c *domain.Challenge) domain.ScoreEntry
	TotalReceivedPoints() int
	Progress() scoring.Progress
}

// Runtime reports whether challenges can run in the current environment.
type Runtime interface {
	CanRun(c *domain.Challenge) bool
	Warning(c *domain.Challenge) string
}

// Solver validates submitted answers.
type Solver interface {
	Solve(ctx context.Context, form domain.ChallengeForm, c *domain.Challenge) (ctf.Outcome, error)
}

// Settings are the process-wide presentation flags, fixed at construction.
type Settings struct {
	HintsEnabled     bool
	ReasonEnabled    bool
	SpoilingEnabled  bool
	CTFEnabled       bool
	CTFServerAddress string // empty when not configured
}

// ChallengeHandler serves the challenge routes. It owns no persistent state.
type ChallengeHandler struct {
	settings   Settings
	challenges []*domain.ChallengeUI
	scores     Scores
	runtime    Runtime
	solver     Solver
}

// NewChallengeHandler creates the challenge controller.
func NewChallengeHandler(settings Settings, challenges []*domain.ChallengeUI, scores Scores, runtime Runtime, solver Solver) *ChallengeHandler {
	return &ChallengeHandler{
		settings:   settings,
		challenges: challenges,
		scores:     scores,
		runtime:    runtime,
		solver:     solver,
	}
}

// RegisterRoutes registers challenge routes.
func (h *ChallengeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/explanation/{id}", h.Explanation)
	r.Get("/spoil-{id}", h.Spoiler)
	r.Get("/challenge/{id}", h.Challenge)
	r.Post("/challenge/{id}", h.PostChallenge)
	r.Get("/api/scorecard", h.Scorecard)
}

// resolve looks up a challenge by its 0-based id.
func (h *ChallengeHandler) resolve(raw string) (*domain.ChallengeUI, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 || id >= len(h.challenges) {
		return nil, fmt.Errorf("%w: %q", domain.ErrChallengeNotFound, raw)
	}
	return h.challenges[id], nil
}

func (h *ChallengeHandler) resolveRequest(w http.ResponseWriter, r *http.Request) (*domain.ChallengeUI, bool) {
	ui, err := h.resolve(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			Error(w, http.StatusNotFound, "challenge not found")
			return nil, false
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return ui, true
}

// Explanation returns the explanation text of a challenge.
func (h *ChallengeHandler) Explanation(w http.ResponseWriter, r *http.Request) {
	ui, ok := h.resolveRequest(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"id":          ui.Challenge.ID,
		"explanation": ui.Explanation,
	})
}

// Spoiler reveals the solution unless policy forbids it. Spoilers can never
// be returned in CTF mode.
func (h *ChallengeHandler) Spoiler(w http.ResponseWriter, r *http.Request) {
	ui, ok := h.resolveRequest(w, r)
	if !ok {
		return
	}

	var spoiler domain.Spoiler
	switch {
	case h.settings.CTFEnabled:
		spoiler = domain.Spoiler{Solution: MsgSpoilsDisabledCTF}
	case !h.settings.SpoilingEnabled:
		spoiler = domain.Spoiler{Solution: MsgSpoilsDisabledConfig}
	default:
		slog.Info("Spoiler revealed", "challenge", ui.Challenge.Name)
		spoiler = ui.Challenge.Spoiler()
	}
	JSON(w, http.StatusOK, SpoilerView{Spoiler: spoiler})
}

// Challenge renders the challenge view.
func (h *ChallengeHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	ui, ok := h.resolveRequest(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.composeChallengeView(ui))
}

// PostChallenge dispatches on the action query parameter.
func (h *ChallengeHandler) PostChallenge(w http.ResponseWriter, r *http.Request) {
	ui, ok := h.resolveRequest(w, r)
	if !ok {
		return
	}

	action := r.URL.Query().Get("action")
	switch action {
	case "reset":
		h.reset(w, r, ui)
	case "submit":
		h.submit(w, r, ui)
	default:
		Error(w, http.StatusBadRequest, "unknown action")
	}
}

func (h *ChallengeHandler) reset(w http.ResponseWriter, r *http.Request, ui *domain.ChallengeUI) {
	if err := h.scores.Reset(r.Context(), ui.Challenge); err != nil {
		slog.Error("Failed to reset challenge", "error", err, "challenge", ui.Challenge.Name)
		Error(w, http.StatusInternalServerError, "failed to reset challenge")
		return
	}
	JSON(w, http.StatusOK, h.composeChallengeView(ui))
}

func (h *ChallengeHandler) submit(w http.ResponseWriter, r *http.Request, ui *domain.ChallengeUI) {
	form := readForm(r)

	outcome, err := h.solver.Solve(r.Context(), form, ui.Challenge)
	if err != nil {
		slog.Error("Failed to record completion", "error", err, "challenge", ui.Challenge.Name)
		Error(w, http.StatusInternalServerError, "failed to record completion")
		return
	}

	view := h.composeChallengeView(ui)
	view.Form = form
	view.AnswerCorrect = outcome.Correct
	view.AnswerIncorrect = outcome.Incorrect
	if outcome.Disabled != "" {
		view.DisabledNotice = outcome.Disabled
	}
	view.Notice = outcome.Notice
	JSON(w, http.StatusOK, view)
}

// readForm extracts the submitted answer. Malformed bodies yield an empty
// answer, which is simply incorrect.
func readForm(r *http.Request) domain.ChallengeForm {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var form domain.ChallengeForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			slog.Debug("Malformed JSON submission", "error", err)
			return domain.ChallengeForm{}
		}
		return form
	}

	if err := r.ParseForm(); err != nil {
		slog.Debug("Malformed form submission", "error", err)
		return domain.ChallengeForm{}
	}
	return domain.ChallengeForm{Solution: r.PostFormValue("solution")}
}

// composeChallengeView assembles the view for a challenge. It never mutates
// the scorecard.
func (h *ChallengeHandler) composeChallengeView(ui *domain.ChallengeUI) ChallengeView {
	c := ui.Challenge
	view := ChallengeView{
		Challenge: h.challengeInfo(ui),
		Form:      domain.ChallengeForm{},
	}

	if !ui.IsChallengeEnabled() {
		view.DisabledNotice = ctf.MsgDisabled
	}
	if h.settings.CTFEnabled && c.Entry {
		if h.settings.CTFServerAddress != "" {
			view.CTFInfo = fmt.Sprintf(MsgCTFInfoRemote, h.settings.CTFServerAddress)
		} else {
			view.CTFInfo = MsgCTFInfoLocal
		}
	}

	h.enrichWithHintsAndReasons(&view)
	h.includeScoringStatus(&view, c)
	h.addWarning(&view, c)
	h.fireEnding(&view)
	return view
}

func (h *ChallengeHandler) challengeInfo(ui *domain.ChallengeUI) ChallengeInfo {
	c := ui.Challenge
	info := ChallengeInfo{
		ID:                   c.ID,
		Name:                 c.Name,
		Title:                c.Title,
		Points:               c.Points,
		Enabled:              c.Enabled,
		Entry:                c.Entry,
		RequiredEnvironments: c.RequiredEnvironments,
		Explanation:          ui.Explanation,
	}
	if h.settings.HintsEnabled {
		info.Hint = ui.Hint
	}
	if h.settings.ReasonEnabled {
		info.Reason = ui.Reason
	}
	return info
}

func (h *ChallengeHandler) enrichWithHintsAndReasons(view *ChallengeView) {
	view.HintsEnabled = h.settings.HintsEnabled
	view.ReasonEnabled = h.settings.ReasonEnabled
}

func (h *ChallengeHandler) includeScoringStatus(view *ChallengeView, c *domain.Challenge) {
	progress := h.scores.Progress()
	view.TotalPoints = h.scores.TotalReceivedPoints()
	view.Progress = progress.String()
	view.ProgressPercent = progress.Percent()
	if h.scores.Completed(c) {
		view.CompletedAlready = MsgCompletedAlready
	}
}

func (h *ChallengeHandler) addWarning(view *ChallengeView, c *domain.Challenge) {
	if !h.runtime.CanRun(c) {
		view.MissingEnvWarning = h.runtime.Warning(c)
	}
}

// fireEnding flags the view once every enabled challenge is completed.
func (h *ChallengeHandler) fireEnding(view *ChallengeView) {
	notCompleted := 0
	for _, ui := range h.challenges {
		if ui.IsChallengeEnabled() && !h.scores.Completed(ui.Challenge) {
			notCompleted++
		}
	}
	view.AllCompleted = notCompleted == 0
}

// Scorecard returns the progress summary over all challenges.
func (h *ChallengeHandler) Scorecard(w http.ResponseWriter, r *http.Request) {
	progress := h.scores.Progress()
	out := ScorecardView{
		TotalPoints:     h.scores.TotalReceivedPoints(),
		Progress:        progress.String(),
		ProgressPercent: progress.Percent(),
		Challenges:      make([]ScorecardEntry, 0, len(h.challenges)),
	}
	allCompleted := true
	for _, ui := range h.challenges {
		c := ui.Challenge
		entry := h.scores.Entry(c)
		if c.Enabled && !entry.Completed {
			allCompleted = false
		}
		out.Challenges = append(out.Challenges, ScorecardEntry{
			ID:        c.ID,
			Name:      c.Name,
			Title:     c.Title,
			Enabled:   c.Enabled,
			Completed: entry.Completed,
			Points:    entry.Points,
		})
	}
	out.AllCompleted = allCompleted
	JSON(w, http.StatusOK, out)
}
