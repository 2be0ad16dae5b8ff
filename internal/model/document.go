package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Document is the whole replicated dataset.
type Document struct {
	Workers         []Worker        `json:"workers"`
	Logs            []AbsenceLog    `json:"logs"`
	RegisteredUsers []User          `json:"registeredUsers"`
	TeamNames       map[Team]string `json:"teamNames"`
	LoginLogs       []LoginLog      `json:"loginLogs"`
	BridgeActive    bool            `json:"bridgeActive"`
	LastUpdated     int64           `json:"lastUpdated,omitempty"`
}

// wireDocument mirrors Document with every field optional, so decoding can
// tell a missing collection apart from an empty one.
type wireDocument struct {
	Workers         *[]Worker        `json:"workers"`
	Logs            *[]AbsenceLog    `json:"logs"`
	RegisteredUsers *[]User          `json:"registeredUsers"`
	TeamNames       *map[Team]string `json:"teamNames"`
	LoginLogs       *[]LoginLog      `json:"loginLogs"`
	BridgeActive    *bool            `json:"bridgeActive"`
	LastUpdated     int64            `json:"lastUpdated"`
}

// DefaultTeamNames returns the display names used when none are stored.
func DefaultTeamNames() map[Team]string {
	names := make(map[Team]string, len(Teams))
	for _, t := range Teams {
		names[t] = "Team " + string(t)
	}
	return names
}

// DefaultDocument returns the state a client starts from before its first
// pull: the default roster, default team names, no logs, no accounts and
// the bridge active.
func DefaultDocument(now int64) Document {
	return Document{
		Workers:         DefaultRoster(),
		Logs:            []AbsenceLog{},
		RegisteredUsers: []User{},
		TeamNames:       DefaultTeamNames(),
		LoginLogs:       []LoginLog{},
		BridgeActive:    true,
		LastUpdated:     now,
	}
}

// DecodeDocument parses a remote payload.
//
// Missing or null collections fall back to defaults: workers to the default
// roster, logs and accounts to empty, team names to the defaults. A missing
// bridgeActive means the bridge is active. Workers are always returned
// sorted.
func DecodeDocument(data []byte) (Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}

	doc := Document{
		BridgeActive: true,
		LastUpdated:  w.LastUpdated,
	}
	if w.Workers != nil {
		doc.Workers = *w.Workers
	} else {
		doc.Workers = DefaultRoster()
	}
	if w.Logs != nil {
		doc.Logs = *w.Logs
	}
	if w.RegisteredUsers != nil {
		doc.RegisteredUsers = *w.RegisteredUsers
	}
	if w.TeamNames != nil {
		doc.TeamNames = *w.TeamNames
	}
	if w.LoginLogs != nil {
		doc.LoginLogs = *w.LoginLogs
	}
	if w.BridgeActive != nil {
		doc.BridgeActive = *w.BridgeActive
	}

	doc.Normalize()
	return doc, nil
}

// EncodeDocument serializes doc for the wire.
func EncodeDocument(doc Document) ([]byte, error) {
	doc.Normalize()
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Normalize replaces nil collections with empty ones, fills in missing team
// names and sorts workers. It never touches workers' field values.
func (d *Document) Normalize() {
	if d.Workers == nil {
		d.Workers = []Worker{}
	}
	if d.Logs == nil {
		d.Logs = []AbsenceLog{}
	}
	if d.RegisteredUsers == nil {
		d.RegisteredUsers = []User{}
	}
	if d.LoginLogs == nil {
		d.LoginLogs = []LoginLog{}
	}
	if d.TeamNames == nil {
		d.TeamNames = make(map[Team]string, len(Teams))
	}
	for _, t := range Teams {
		if _, ok := d.TeamNames[t]; !ok {
			d.TeamNames[t] = "Team " + string(t)
		}
	}
	SortWorkers(d.Workers)
}

// Clone returns a deep copy of d. The copy shares no slices, maps or
// pointers with the original.
func (d Document) Clone() Document {
	out := d
	if d.Workers != nil {
		out.Workers = make([]Worker, len(d.Workers))
		for i, w := range d.Workers {
			if w.LastAbsenceStart != nil {
				start := *w.LastAbsenceStart
				w.LastAbsenceStart = &start
			}
			out.Workers[i] = w
		}
	}
	out.Logs = slices.Clone(d.Logs)
	out.RegisteredUsers = slices.Clone(d.RegisteredUsers)
	out.LoginLogs = slices.Clone(d.LoginLogs)
	if d.TeamNames != nil {
		out.TeamNames = make(map[Team]string, len(d.TeamNames))
		for k, v := range d.TeamNames {
			out.TeamNames[k] = v
		}
	}
	return out
}

// TeamName returns the display name for t.
func (d *Document) TeamName(t Team) string {
	if name, ok := d.TeamNames[t]; ok && name != "" {
		return name
	}
	return "Team " + string(t)
}

// SortWorkers orders workers by the integer formed from all digits of their
// pcNumber. A pcNumber without digits sorts as 0. The sort is stable.
func SortWorkers(workers []Worker) {
	slices.SortStableFunc(workers, func(a, b Worker) int {
		na, nb := PCOrdinal(a.PCNumber), PCOrdinal(b.PCNumber)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	})
}

// PCOrdinal extracts the numeric sort key from a pcNumber.
func PCOrdinal(pc string) int64 {
	var digits strings.Builder
	for _, r := range pc {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// NormalizePCNumber canonicalizes operator input: values already carrying
// the PC- prefix are upper-cased, anything else gets the prefix prepended.
func NormalizePCNumber(input string) string {
	input = strings.TrimSpace(input)
	upper := strings.ToUpper(input)
	if strings.HasPrefix(upper, "PC-") {
		return upper
	}
	return "PC-" + input
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

// Equal reports whether a and b carry the same content, ignoring lastUpdated.
func Equal(a, b Document) bool {
	ha, err := ContentHash(a)
	if err != nil {
		return false
	}
	hb, err := ContentHash(b)
	if err != nil {
		return false
	}
	return ha == hb
}
