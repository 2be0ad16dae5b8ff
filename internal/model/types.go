package model

import "strings"

// Role is the permission level of a registered account.
type Role string

const (
	RoleOwner Role = "Owner"
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// Team identifies one of the four fixed teams.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
	TeamC Team = "C"
	TeamD Team = "D"
)

// Teams lists all teams in display order.
var Teams = []Team{TeamA, TeamB, TeamC, TeamD}

// Valid reports whether t is one of the fixed teams.
func (t Team) Valid() bool {
	switch t {
	case TeamA, TeamB, TeamC, TeamD:
		return true
	}
	return false
}

// Status is a worker's presence state.
type Status string

const (
	StatusActive Status = "Active"
	StatusAway   Status = "Away"
)

// Reason explains why a worker is away.
type Reason string

const (
	ReasonBreak       Reason = "Break"
	ReasonLunch       Reason = "Lunch"
	ReasonMeeting     Reason = "Meeting"
	ReasonEmergency   Reason = "Emergency"
	ReasonSystemIssue Reason = "System Issue"
	ReasonOther       Reason = "Other"
)

// Reasons lists every absence reason.
var Reasons = []Reason{
	ReasonBreak, ReasonLunch, ReasonMeeting,
	ReasonEmergency, ReasonSystemIssue, ReasonOther,
}

// Valid reports whether r is a known absence reason.
func (r Reason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Worker is a tracked person occupying a workstation.
//
// Away workers carry LastAbsenceStart and CurrentReason; Active workers
// carry neither. TotalAbsenceToday is in whole seconds.
type Worker struct {
	ID                string `json:"id" yaml:"id"`
	PCNumber          string `json:"pcNumber" yaml:"pc"`
	Name              string `json:"name" yaml:"name"`
	Team              Team   `json:"team" yaml:"team"`
	Status            Status `json:"status" yaml:"-"`
	LastAbsenceStart  *int64 `json:"lastAbsenceStart,omitempty" yaml:"-"`
	CurrentReason     Reason `json:"currentReason,omitempty" yaml:"-"`
	TotalAbsenceToday int64  `json:"totalAbsenceToday" yaml:"-"`
}

// IsAway reports whether the worker is currently away.
func (w Worker) IsAway() bool {
	return w.Status == StatusAway
}

// AbsenceLog records one completed absence interval.
// StartTime and EndTime are unix milliseconds; Duration is whole seconds.
// WorkerID is a soft reference and may dangle after the worker is deleted.
type AbsenceLog struct {
	ID        string `json:"id"`
	WorkerID  string `json:"workerId"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Duration  int64  `json:"duration"`
	Reason    Reason `json:"reason"`
	Date      string `json:"date"`
}

// User is a registered account. Password is stored and compared in plaintext.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
	Role      Role   `json:"role"`
	Team      Team   `json:"team,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// LoginLog records a successful login.
type LoginLog struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	Timestamp int64  `json:"timestamp"`
}

// FindWorker returns the index of the worker with id, or -1.
func (d *Document) FindWorker(id string) int {
	for i := range d.Workers {
		if d.Workers[i].ID == id {
			return i
		}
	}
	return -1
}

// WorkerByPC returns the index of the worker whose pcNumber matches pc
// case-insensitively, or -1.
func (d *Document) WorkerByPC(pc string) int {
	for i := range d.Workers {
		if strings.EqualFold(d.Workers[i].PCNumber, pc) {
			return i
		}
	}
	return -1
}

// UserByName returns the index of the account whose username matches name
// case-insensitively after trimming, or -1.
func (d *Document) UserByName(name string) int {
	name = strings.TrimSpace(name)
	for i := range d.RegisteredUsers {
		if strings.EqualFold(strings.TrimSpace(d.RegisteredUsers[i].Username), name) {
			return i
		}
	}
	return -1
}
