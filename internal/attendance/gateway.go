package attendance

import (
	"log/slog"

	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/replication"
)

// Gateway is the single entry point for local mutations.
//
// Each operation checks permissions, computes the next document with a pure
// transition and commits it through the engine, which marks the state dirty
// and queues a push of exactly that document. A denied or invalid operation
// commits nothing.
type Gateway struct {
	engine *replication.Engine
	ids    IDGenerator
	log    *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(ids IDGenerator) GatewayOption {
	return func(g *Gateway) { g.ids = ids }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.log = l }
}

// NewGateway creates a gateway committing through engine.
func NewGateway(engine *replication.Engine, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		engine: engine,
		ids:    UUIDv7Generator{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Engine returns the engine the gateway commits through.
func (g *Gateway) Engine() *replication.Engine {
	return g.engine
}

func (g *Gateway) env() Env {
	return Env{Now: g.engine.Now(), IDs: g.ids}
}

// commit runs fn inside an engine commit and logs the outcome. The actor is
// read before the commit starts; fn runs under the engine lock.
func (g *Gateway) commit(op string, fn func(doc model.Document, actor replication.Identity) (model.Document, error)) (model.Document, error) {
	actor := g.engine.Identity()
	doc, err := g.engine.Commit(func(current model.Document) (model.Document, error) {
		return fn(current, actor)
	})
	if err != nil {
		if IsPolicyError(err) {
			g.log.Warn("mutation denied", "op", op, "actor", actor.Username, "error", err)
		} else {
			g.log.Debug("mutation rejected", "op", op, "actor", actor.Username, "error", err)
		}
		return model.Document{}, err
	}
	g.log.Info("mutation committed", "op", op, "actor", actor.Username)
	return doc, nil
}

func requireBridge(doc model.Document, actor replication.Identity) error {
	if !doc.BridgeActive && !actor.IsOwner() {
		return deny(ErrBridgeSuspended, actor.Username)
	}
	return nil
}

// ToggleStatus flips a worker between Active and Away.
func (g *Gateway) ToggleStatus(workerID string, reason model.Reason) (model.Document, error) {
	env := g.env()
	return g.commit("toggle_status", func(doc model.Document, actor replication.Identity) (model.Document, error) {
		if err := requireBridge(doc, actor); err != nil {
			return doc, err
		}
		return ToggleStatus(doc, workerID, reason, env)
	})
}

// BulkSetStatus moves every worker in scope to target.
func (g *Gateway) BulkSetStatus(scope string, target model.Status, reason model.Reason) (model.Document, error) {
	env := g.env()
	return g.commit("bulk_set_status", func(doc model.Document, actor replication.Identity) (model.Document, error) {
		if err := requireBridge(doc, actor); err != nil {
			return doc, err
		}
		return BulkSetStatus(doc, scope, target, reason, env)
	})
}

// AddWorker adds a worker and returns it.
func (g *Gateway) AddWorker(in NewWorker) (model.Worker, error) {
	env := g.env()
	doc, err := g.commit("add_worker", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return AddWorker(doc, in, env)
	})
	if err != nil {
		return model.Worker{}, err
	}
	// The new worker's pcNumber is unique, so it identifies the record.
	i := doc.WorkerByPC(model.NormalizePCNumber(in.PCNumber))
	return doc.Workers[i], nil
}

// UpdateWorker edits a worker.
func (g *Gateway) UpdateWorker(id string, upd WorkerUpdate) (model.Document, error) {
	return g.commit("update_worker", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return UpdateWorker(doc, id, upd)
	})
}

// DeleteWorker removes a worker.
func (g *Gateway) DeleteWorker(id string) (model.Document, error) {
	return g.commit("delete_worker", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return DeleteWorker(doc, id)
	})
}

// RenameTeam relabels a team.
func (g *Gateway) RenameTeam(team model.Team, name string) (model.Document, error) {
	return g.commit("rename_team", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return RenameTeam(doc, team, name)
	})
}

// DeleteLog removes an absence log.
func (g *Gateway) DeleteLog(id string) (model.Document, error) {
	return g.commit("delete_log", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return DeleteLog(doc, id)
	})
}

// DeleteLoginLog removes a login record.
func (g *Gateway) DeleteLoginLog(id string) (model.Document, error) {
	return g.commit("delete_login_log", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return DeleteLoginLog(doc, id)
	})
}

// DeleteUser removes a registered account.
func (g *Gateway) DeleteUser(id string) (model.Document, error) {
	return g.commit("delete_user", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return DeleteUser(doc, id)
	})
}

// FlushLogs clears all absence logs.
func (g *Gateway) FlushLogs() (model.Document, error) {
	return g.commit("flush_logs", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return FlushLogs(doc)
	})
}

// ResetRoster restores the default workers.
func (g *Gateway) ResetRoster() (model.Document, error) {
	return g.commit("reset_roster", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return ResetRoster(doc)
	})
}

// ToggleBridge flips the global bridge. Owner only.
func (g *Gateway) ToggleBridge() (model.Document, error) {
	return g.commit("toggle_bridge", func(doc model.Document, actor replication.Identity) (model.Document, error) {
		if !actor.IsOwner() {
			return doc, deny(ErrOwnerOnly, actor.Username)
		}
		return ToggleBridge(doc)
	})
}

// RegisterUser adds an account and returns it.
func (g *Gateway) RegisterUser(in NewUser) (model.User, error) {
	env := g.env()
	var created model.User
	_, err := g.commit("register_user", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		next, user, err := RegisterUser(doc, in, env)
		created = user
		return next, err
	})
	if err != nil {
		return model.User{}, err
	}
	return created, nil
}

// RecordLogin appends a login record for user.
func (g *Gateway) RecordLogin(user model.User) (model.Document, error) {
	env := g.env()
	return g.commit("record_login", func(doc model.Document, _ replication.Identity) (model.Document, error) {
		return RecordLogin(doc, user.Username, user.Role, env)
	})
}
