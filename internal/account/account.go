// Package account handles registration, login and logout against the
// replicated account registry.
//
// Credentials are compared in plaintext on the client, the same way every
// other client of the shared document does.
package account

import (
	"errors"
	"log/slog"

	"github.com/roach88/shiftguard/internal/attendance"
	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/replication"
)

var (
	// ErrNotReady is returned before the first pull has completed, when the
	// account registry is not yet known.
	ErrNotReady = errors.New("cloud registry not loaded yet")

	// ErrNoUsers is returned by Login when no account is registered.
	ErrNoUsers = errors.New("no users found in cloud registry, please enroll first")

	// ErrInvalidCredentials is returned by Login on a username or password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials, check spelling and capitalization")

	// ErrRecoveryOwnerOnly is returned for every password recovery request.
	ErrRecoveryOwnerOnly = errors.New("password recovery must be authorized by the system Owner")
)

// AccessCodes gate registration of privileged roles.
type AccessCodes struct {
	Owner string
	Admin string
}

// Registration is the input for Register.
type Registration struct {
	attendance.NewUser
	AccessCode string `json:"accessCode,omitempty"`
}

// Service implements the account flows on top of the gateway.
type Service struct {
	gw    *attendance.Gateway
	codes AccessCodes
	log   *slog.Logger
}

// New creates a Service.
func New(gw *attendance.Gateway, codes AccessCodes, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, codes: codes, log: logger}
}

// Register validates the access code for privileged roles and adds the
// account. Field validation and the username uniqueness check run inside
// the commit.
func (s *Service) Register(in Registration) (model.User, error) {
	if !s.gw.Engine().Status().Initialized {
		return model.User{}, ErrNotReady
	}
	switch in.Role {
	case model.RoleOwner:
		if s.codes.Owner == "" || in.AccessCode != s.codes.Owner {
			return model.User{}, accessCodeError(in.Role)
		}
	case model.RoleAdmin:
		if s.codes.Admin == "" || in.AccessCode != s.codes.Admin {
			return model.User{}, accessCodeError(in.Role)
		}
	}

	user, err := s.gw.RegisterUser(in.NewUser)
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", "username", user.Username, "role", user.Role)
	return user, nil
}

func accessCodeError(role model.Role) error {
	return &attendance.ValidationError{
		Code:    attendance.ErrCodeInvalid,
		Field:   "accessCode",
		Message: "invalid security access code for " + string(role) + " role",
	}
}

// Login checks credentials, sets the engine identity and records the login.
// Usernames match case-insensitively; passwords match exactly.
func (s *Service) Login(username, password string) (model.User, error) {
	engine := s.gw.Engine()
	if !engine.Status().Initialized {
		return model.User{}, ErrNotReady
	}

	doc := engine.Snapshot()
	if len(doc.RegisteredUsers) == 0 {
		return model.User{}, ErrNoUsers
	}
	i := doc.UserByName(username)
	if i < 0 || doc.RegisteredUsers[i].Password != password {
		s.log.Info("login rejected", "username", username)
		return model.User{}, ErrInvalidCredentials
	}
	user := doc.RegisteredUsers[i]

	engine.SetIdentity(replication.Identity{Username: user.Username, Role: user.Role})
	if _, err := s.gw.RecordLogin(user); err != nil {
		return model.User{}, err
	}
	s.log.Info("user logged in", "username", user.Username, "role", user.Role)
	return user, nil
}

// Logout clears the engine identity. Automatic pushes stop until the next
// login; queued pushes still run.
func (s *Service) Logout() {
	engine := s.gw.Engine()
	id := engine.Identity()
	engine.SetIdentity(replication.Identity{})
	if id.Username != "" {
		s.log.Info("user logged out", "username", id.Username)
	}
}

// Current returns the logged-in identity, if any.
func (s *Service) Current() (replication.Identity, bool) {
	id := s.gw.Engine().Identity()
	return id, id.Username != ""
}

// RecoverPassword always refuses.
func (s *Service) RecoverPassword(username string) error {
	s.log.Info("password recovery refused", "username", username)
	return ErrRecoveryOwnerOnly
}
