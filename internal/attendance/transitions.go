package attendance

import (
	"strings"
	"time"

	"github.com/roach88/shiftguard/internal/model"
)

// ScopeAll selects every team in a bulk status change.
const ScopeAll = "ALL"

// Env carries the inputs a transition needs from outside the document.
type Env struct {
	Now time.Time
	IDs IDGenerator
}

func (env Env) millis() int64 {
	return env.Now.UnixMilli()
}

func (env Env) newID(prefix string) string {
	ids := env.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return prefix + ids.Generate()
}

// NewWorker holds the operator input for AddWorker.
type NewWorker struct {
	PCNumber string     `json:"pcNumber"`
	Name     string     `json:"name"`
	Team     model.Team `json:"team"`
}

// WorkerUpdate holds the fields UpdateWorker may change. Nil fields are kept.
type WorkerUpdate struct {
	PCNumber *string     `json:"pcNumber,omitempty"`
	Name     *string     `json:"name,omitempty"`
	Team     *model.Team `json:"team,omitempty"`
}

// NewUser holds the input for RegisterUser.
type NewUser struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	Team     model.Team `json:"team,omitempty"`
}

func normalizeReason(r model.Reason) (model.Reason, error) {
	if r == "" {
		return model.ReasonOther, nil
	}
	if !r.Valid() {
		return "", invalid(ErrCodeInvalid, "reason", "unknown absence reason %q", r)
	}
	return r, nil
}

// goAway marks w Away as of now.
func goAway(w model.Worker, reason model.Reason, now int64) model.Worker {
	start := now
	w.Status = model.StatusAway
	w.LastAbsenceStart = &start
	w.CurrentReason = reason
	return w
}

// comeBack marks w Active and returns the closed absence log.
func comeBack(w model.Worker, env Env) (model.Worker, model.AbsenceLog) {
	now := env.millis()
	start := now
	if w.LastAbsenceStart != nil {
		start = *w.LastAbsenceStart
	}
	duration := max(0, (now-start)/1000)
	reason := w.CurrentReason
	if reason == "" {
		reason = model.ReasonOther
	}

	entry := model.AbsenceLog{
		ID:        env.newID(PrefixLog),
		WorkerID:  w.ID,
		StartTime: start,
		EndTime:   now,
		Duration:  duration,
		Reason:    reason,
		Date:      env.Now.UTC().Format(time.DateOnly),
	}

	w.Status = model.StatusActive
	w.LastAbsenceStart = nil
	w.CurrentReason = ""
	w.TotalAbsenceToday += duration
	return w, entry
}

// ToggleStatus flips one worker between Active and Away. Going Away records
// the start time and reason (default Other). Coming back prepends a closed
// AbsenceLog and adds its duration to the worker's daily total.
func ToggleStatus(doc model.Document, workerID string, reason model.Reason, env Env) (model.Document, error) {
	i := doc.FindWorker(workerID)
	if i < 0 {
		return doc, notFound("worker", workerID)
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return doc, err
	}

	w := doc.Workers[i]
	if w.IsAway() {
		next, entry := comeBack(w, env)
		doc.Workers[i] = next
		doc.Logs = append([]model.AbsenceLog{entry}, doc.Logs...)
	} else {
		doc.Workers[i] = goAway(w, reason, env.millis())
	}
	return doc, nil
}

// BulkSetStatus moves every worker in scope (a team or ScopeAll) to target.
// Workers already in target are untouched. Going Away never logs; coming
// back logs exactly as ToggleStatus does.
func BulkSetStatus(doc model.Document, scope string, target model.Status, reason model.Reason, env Env) (model.Document, error) {
	if scope != ScopeAll && !model.Team(scope).Valid() {
		return doc, invalid(ErrCodeInvalid, "team", "unknown team %q", scope)
	}
	if target != model.StatusActive && target != model.StatusAway {
		return doc, invalid(ErrCodeInvalid, "status", "unknown status %q", target)
	}
	reason, err := normalizeReason(reason)
	if err != nil {
		return doc, err
	}

	for i, w := range doc.Workers {
		if scope != ScopeAll && string(w.Team) != scope {
			continue
		}
		if w.Status == target {
			continue
		}
		if target == model.StatusAway {
			doc.Workers[i] = goAway(w, reason, env.millis())
			continue
		}
		next, entry := comeBack(w, env)
		doc.Workers[i] = next
		doc.Logs = append([]model.AbsenceLog{entry}, doc.Logs...)
	}
	return doc, nil
}

func validatePC(doc *model.Document, raw, selfID string) (string, error) {
	if model.IsBlank(raw) {
		return "", invalid(ErrCodeRequired, "pcNumber", "pc number is required")
	}
	pc := model.NormalizePCNumber(raw)
	if i := doc.WorkerByPC(pc); i >= 0 && doc.Workers[i].ID != selfID {
		return "", invalid(ErrCodeDuplicate, "pcNumber", "%s is already assigned to %s", pc, doc.Workers[i].Name)
	}
	return pc, nil
}

// AddWorker appends a new Active worker.
func AddWorker(doc model.Document, in NewWorker, env Env) (model.Document, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return doc, invalid(ErrCodeRequired, "name", "name is required")
	}
	if !in.Team.Valid() {
		return doc, invalid(ErrCodeInvalid, "team", "unknown team %q", in.Team)
	}
	pc, err := validatePC(&doc, in.PCNumber, "")
	if err != nil {
		return doc, err
	}

	doc.Workers = append(doc.Workers, model.Worker{
		ID:       env.newID(PrefixWorker),
		PCNumber: pc,
		Name:     name,
		Team:     in.Team,
		Status:   model.StatusActive,
	})
	return doc, nil
}

// UpdateWorker edits a worker's name, pcNumber or team.
func UpdateWorker(doc model.Document, id string, upd WorkerUpdate) (model.Document, error) {
	i := doc.FindWorker(id)
	if i < 0 {
		return doc, notFound("worker", id)
	}
	w := doc.Workers[i]

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return doc, invalid(ErrCodeRequired, "name", "name is required")
		}
		w.Name = name
	}
	if upd.PCNumber != nil {
		pc, err := validatePC(&doc, *upd.PCNumber, id)
		if err != nil {
			return doc, err
		}
		w.PCNumber = pc
	}
	if upd.Team != nil {
		if !upd.Team.Valid() {
			return doc, invalid(ErrCodeInvalid, "team", "unknown team %q", *upd.Team)
		}
		w.Team = *upd.Team
	}

	doc.Workers[i] = w
	return doc, nil
}

// DeleteWorker removes a worker. Its logs stay and keep the dangling id.
func DeleteWorker(doc model.Document, id string) (model.Document, error) {
	i := doc.FindWorker(id)
	if i < 0 {
		return doc, notFound("worker", id)
	}
	doc.Workers = append(doc.Workers[:i], doc.Workers[i+1:]...)
	return doc, nil
}

// RenameTeam sets a team's display label.
func RenameTeam(doc model.Document, team model.Team, name string) (model.Document, error) {
	if !team.Valid() {
		return doc, invalid(ErrCodeInvalid, "team", "unknown team %q", team)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return doc, invalid(ErrCodeRequired, "name", "team name is required")
	}
	if doc.TeamNames == nil {
		doc.TeamNames = model.DefaultTeamNames()
	}
	doc.TeamNames[team] = name
	return doc, nil
}

// DeleteLog removes one absence log.
func DeleteLog(doc model.Document, id string) (model.Document, error) {
	for i := range doc.Logs {
		if doc.Logs[i].ID == id {
			doc.Logs = append(doc.Logs[:i], doc.Logs[i+1:]...)
			return doc, nil
		}
	}
	return doc, notFound("log", id)
}

// DeleteLoginLog removes one login record.
func DeleteLoginLog(doc model.Document, id string) (model.Document, error) {
	for i := range doc.LoginLogs {
		if doc.LoginLogs[i].ID == id {
			doc.LoginLogs = append(doc.LoginLogs[:i], doc.LoginLogs[i+1:]...)
			return doc, nil
		}
	}
	return doc, notFound("login log", id)
}

// DeleteUser removes a registered account.
func DeleteUser(doc model.Document, id string) (model.Document, error) {
	for i := range doc.RegisteredUsers {
		if doc.RegisteredUsers[i].ID == id {
			doc.RegisteredUsers = append(doc.RegisteredUsers[:i], doc.RegisteredUsers[i+1:]...)
			return doc, nil
		}
	}
	return doc, notFound("user", id)
}

// FlushLogs clears every absence log.
func FlushLogs(doc model.Document) (model.Document, error) {
	doc.Logs = []model.AbsenceLog{}
	return doc, nil
}

// ResetRoster replaces the workers with the default roster. Logs, accounts,
// team names and the bridge flag are kept.
func ResetRoster(doc model.Document) (model.Document, error) {
	doc.Workers = model.DefaultRoster()
	return doc, nil
}

// ToggleBridge flips the global bridge flag.
func ToggleBridge(doc model.Document) (model.Document, error) {
	doc.BridgeActive = !doc.BridgeActive
	return doc, nil
}

// RegisterUser appends an account. Username and email are trimmed;
// usernames are unique case-insensitively.
func RegisterUser(doc model.Document, in NewUser, env Env) (model.Document, model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	switch {
	case username == "":
		return doc, model.User{}, invalid(ErrCodeRequired, "username", "username is required")
	case email == "":
		return doc, model.User{}, invalid(ErrCodeRequired, "email", "email is required")
	case !strings.Contains(email, "@"):
		return doc, model.User{}, invalid(ErrCodeInvalid, "email", "email must contain @")
	case in.Password == "":
		return doc, model.User{}, invalid(ErrCodeRequired, "password", "password is required")
	case !in.Role.Valid():
		return doc, model.User{}, invalid(ErrCodeInvalid, "role", "unknown role %q", in.Role)
	case in.Team != "" && !in.Team.Valid():
		return doc, model.User{}, invalid(ErrCodeInvalid, "team", "unknown team %q", in.Team)
	}
	if doc.UserByName(username) >= 0 {
		return doc, model.User{}, invalid(ErrCodeDuplicate, "username", "username %q is taken", username)
	}

	user := model.User{
		ID:        env.newID(PrefixUser),
		Username:  username,
		Email:     email,
		Password:  in.Password,
		Role:      in.Role,
		Team:      in.Team,
		CreatedAt: env.millis(),
	}
	doc.RegisteredUsers = append(doc.RegisteredUsers, user)
	return doc, user, nil
}

// RecordLogin prepends a login record.
func RecordLogin(doc model.Document, username string, role model.Role, env Env) (model.Document, error) {
	entry := model.LoginLog{
		ID:        env.newID(PrefixLogin),
		Username:  username,
		Role:      role,
		Timestamp: env.millis(),
	}
	doc.LoginLogs = append([]model.LoginLog{entry}, doc.LoginLogs...)
	return doc, nil
}
