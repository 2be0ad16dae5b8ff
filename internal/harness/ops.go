package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/shiftguard/internal/account"
	"github.com/roach88/shiftguard/internal/attendance"
	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/remote"
	"github.com/roach88/shiftguard/internal/replication"
)

// errRemoteFailure is injected by the remote_fail op.
var errRemoteFailure = errors.New("injected remote failure")

// opFunc performs one scenario operation and returns its result fields.
type opFunc func(ctx context.Context, h *Harness, args opArgs) (map[string]any, error)

// operations maps scenario op names to their implementation.
var operations = map[string]opFunc{
	// replication
	"pull":        opPull,
	"push":        opPush,
	"sync":        opSync,
	"remote_fail": opRemoteFail,
	"remote_edit": opRemoteEdit,

	// session
	"set_identity":     opSetIdentity,
	"register":         opRegister,
	"login":            opLogin,
	"logout":           opLogout,
	"recover_password": opRecoverPassword,

	// attendance
	"toggle":           opToggle,
	"bulk":             opBulk,
	"add_worker":       opAddWorker,
	"update_worker":    opUpdateWorker,
	"delete_worker":    opDeleteWorker,
	"rename_team":      opRenameTeam,
	"delete_log":       opDeleteLog,
	"flush_logs":       opFlushLogs,
	"delete_login_log": opDeleteLoginLog,
	"delete_user":      opDeleteUser,
	"reset_roster":     opResetRoster,
	"toggle_bridge":    opToggleBridge,
}

// opArgs reads YAML-decoded arguments.
type opArgs map[string]any

func (a opArgs) str(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (a opArgs) optional(key string) *string {
	if _, ok := a[key]; !ok {
		return nil
	}
	s := a.str(key)
	return &s
}

func (a opArgs) boolean(key string) (bool, error) {
	switch v := a[key].(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	case nil:
		return false, fmt.Errorf("%s is required", key)
	default:
		return false, fmt.Errorf("%s: expected bool, got %T", key, v)
	}
}

func opPull(ctx context.Context, h *Harness, _ opArgs) (map[string]any, error) {
	return nil, h.engine.Pull(ctx, false)
}

// opPush runs the queued push, standing in for the debounce timer.
func opPush(ctx context.Context, h *Harness, _ opArgs) (map[string]any, error) {
	return nil, h.engine.Flush(ctx)
}

func opSync(ctx context.Context, h *Harness, _ opArgs) (map[string]any, error) {
	return nil, h.engine.Sync(ctx)
}

func opRemoteFail(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	op := remote.Op(args.str("op"))
	switch op {
	case remote.OpFetch, remote.OpUpdate, remote.OpCreate:
	default:
		return nil, fmt.Errorf("remote_fail: unknown remote op %q", op)
	}
	h.remote.FailNext(op, errRemoteFailure)
	return nil, nil
}

// opRemoteEdit changes the remote record the way another client would.
func opRemoteEdit(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	doc, ok := h.remote.Document()
	if !ok {
		return nil, fmt.Errorf("remote_edit: no remote record")
	}
	if _, set := args["bridge_active"]; set {
		active, err := args.boolean("bridge_active")
		if err != nil {
			return nil, err
		}
		doc.BridgeActive = active
	}
	if team := args.str("team"); team != "" {
		doc.TeamNames[model.Team(team)] = args.str("name")
	}
	doc.LastUpdated = h.clock.Now().UnixMilli()
	return nil, h.remote.Seed(doc)
}

func opSetIdentity(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	h.engine.SetIdentity(replication.Identity{
		Username: args.str("username"),
		Role:     model.Role(args.str("role")),
	})
	return nil, nil
}

func opRegister(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	user, err := h.accounts.Register(account.Registration{
		NewUser: attendance.NewUser{
			Username: args.str("username"),
			Email:    args.str("email"),
			Password: args.str("password"),
			Role:     model.Role(args.str("role")),
			Team:     model.Team(args.str("team")),
		},
		AccessCode: args.str("access_code"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": user.ID}, nil
}

func opLogin(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	user, err := h.accounts.Login(args.str("username"), args.str("password"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"username": user.Username, "role": string(user.Role)}, nil
}

func opLogout(_ context.Context, h *Harness, _ opArgs) (map[string]any, error) {
	h.accounts.Logout()
	return nil, nil
}

func opRecoverPassword(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	return nil, h.accounts.RecoverPassword(args.str("username"))
}

func opToggle(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	id := args.str("worker")
	doc, err := h.gateway.ToggleStatus(id, model.Reason(args.str("reason")))
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": string(doc.Workers[doc.FindWorker(id)].Status)}, nil
}

func opBulk(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	doc, err := h.gateway.BulkSetStatus(args.str("team"), model.Status(args.str("status")), model.Reason(args.str("reason")))
	if err != nil {
		return nil, err
	}
	return map[string]any{"logs": len(doc.Logs)}, nil
}

func opAddWorker(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	w, err := h.gateway.AddWorker(attendance.NewWorker{
		PCNumber: args.str("pc"),
		Name:     args.str("name"),
		Team:     model.Team(args.str("team")),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": w.ID, "pc": w.PCNumber}, nil
}

func opUpdateWorker(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	upd := attendance.WorkerUpdate{
		PCNumber: args.optional("pc"),
		Name:     args.optional("name"),
	}
	if team := args.optional("team"); team != nil {
		t := model.Team(*team)
		upd.Team = &t
	}
	_, err := h.gateway.UpdateWorker(args.str("id"), upd)
	return nil, err
}

func opDeleteWorker(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	_, err := h.gateway.DeleteWorker(args.str("id"))
	return nil, err
}

func opRenameTeam(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	_, err := h.gateway.RenameTeam(model.Team(args.str("team")), args.str("name"))
	return nil, err
}

func opDeleteLog(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	_, err := h.gateway.DeleteLog(args.str("id"))
	return nil, err
}

func opFlushLogs(_ context.Context, h *Harness, _ opArgs) (map[string]any, error) {
	_, err := h.gateway.FlushLogs()
	return nil, err
}

func opDeleteLoginLog(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	_, err := h.gateway.DeleteLoginLog(args.str("id"))
	return nil, err
}

func opDeleteUser(_ context.Context, h *Harness, args opArgs) (map[string]any, error) {
	_, err := h.gateway.DeleteUser(args.str("id"))
	return nil, err
}

func opResetRoster(_ context.Context, h *Harness, _ opArgs) (map[string]any, error) {
	_, err := h.gateway.ResetRoster()
	return nil, err
}

func opToggleBridge(_ context.Context, h *Harness, _ opArgs) (map[string]any, error) {
	doc, err := h.gateway.ToggleBridge()
	if err != nil {
		return nil, err
	}
	return map[string]any{"bridge_active": doc.BridgeActive}, nil
}
