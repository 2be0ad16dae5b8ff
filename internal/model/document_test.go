package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoster(t *testing.T) {
	workers := DefaultRoster()
	require.Len(t, workers, 66)

	assert.Equal(t, "PC-01", workers[0].PCNumber)
	assert.Equal(t, "PC-66", workers[65].PCNumber)

	counts := map[Team]int{}
	for _, w := range workers {
		assert.Equal(t, StatusActive, w.Status)
		assert.Nil(t, w.LastAbsenceStart)
		assert.Zero(t, w.TotalAbsenceToday)
		counts[w.Team]++
	}
	assert.Equal(t, map[Team]int{TeamA: 17, TeamB: 17, TeamC: 17, TeamD: 15}, counts)
}

func TestDefaultRosterReturnsCopy(t *testing.T) {
	a := DefaultRoster()
	a[0].Name = "changed"
	b := DefaultRoster()
	assert.NotEqual(t, "changed", b[0].Name)
}

func TestParseRosterRejectsDuplicates(t *testing.T) {
	_, err := ParseRoster([]byte(`
workers:
  - {id: w-1, pc: PC-1, name: A, team: A}
  - {id: w-2, pc: PC-1, name: B, team: B}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate pc")

	_, err = ParseRoster([]byte(`
workers:
  - {id: w-1, pc: PC-1, name: A, team: Z}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown team")
}

func TestSortWorkers(t *testing.T) {
	workers := []Worker{
		{ID: "a", PCNumber: "PC-10"},
		{ID: "b", PCNumber: "PC-2"},
		{ID: "c", PCNumber: "LAPTOP"},
		{ID: "d", PCNumber: "PC-02"},
		{ID: "e", PCNumber: "PC-1-1"},
	}
	SortWorkers(workers)

	var ids []string
	for _, w := range workers {
		ids = append(ids, w.ID)
	}
	// LAPTOP sorts as 0; PC-2 and PC-02 tie and keep input order; PC-1-1 is 11.
	assert.Equal(t, []string{"c", "b", "d", "a", "e"}, ids)
}

func TestNormalizePCNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12", "PC-12"},
		{"pc-7", "PC-7"},
		{"PC-07", "PC-07"},
		{"  33 ", "PC-33"},
		{"lab1", "PC-lab1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePCNumber(tt.in))
		})
	}
}

func TestDecodeDocumentDefaults(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{}`))
	require.NoError(t, err)

	assert.Len(t, doc.Workers, 66)
	assert.Empty(t, doc.Logs)
	assert.NotNil(t, doc.Logs)
	assert.Empty(t, doc.RegisteredUsers)
	assert.Empty(t, doc.LoginLogs)
	assert.Equal(t, DefaultTeamNames(), doc.TeamNames)
	assert.True(t, doc.BridgeActive, "missing bridgeActive means active")
}

func TestDecodeDocumentKeepsExplicitValues(t *testing.T) {
	payload := `{
		"workers": [
			{"id":"w2","pcNumber":"PC-20","name":"Second","team":"B","status":"Away","lastAbsenceStart":5000,"currentReason":"Lunch","totalAbsenceToday":12},
			{"id":"w1","pcNumber":"PC-3","name":"First","team":"A","status":"Active","totalAbsenceToday":0}
		],
		"logs": [],
		"teamNames": {"A": "Alpha"},
		"bridgeActive": false,
		"lastUpdated": 42
	}`
	doc, err := DecodeDocument([]byte(payload))
	require.NoError(t, err)

	require.Len(t, doc.Workers, 2)
	assert.Equal(t, "w1", doc.Workers[0].ID, "workers are sorted on decode")
	require.NotNil(t, doc.Workers[1].LastAbsenceStart)
	assert.Equal(t, int64(5000), *doc.Workers[1].LastAbsenceStart)
	assert.Equal(t, ReasonLunch, doc.Workers[1].CurrentReason)
	assert.Equal(t, "Alpha", doc.TeamNames[TeamA])
	assert.Equal(t, "Team B", doc.TeamNames[TeamB])
	assert.False(t, doc.BridgeActive)
	assert.Equal(t, int64(42), doc.LastUpdated)
}

func TestDecodeDocumentEmptyWorkersStayEmpty(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"workers": []}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Workers)
}

func TestDecodeDocumentInvalid(t *testing.T) {
	_, err := DecodeDocument([]byte(`{"workers": "nope"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode document")
}

func TestEncodeDocumentWireNames(t *testing.T) {
	start := int64(1000)
	doc := Document{
		Workers: []Worker{{
			ID: "w1", PCNumber: "PC-1", Name: "A", Team: TeamA,
			Status: StatusAway, LastAbsenceStart: &start, CurrentReason: ReasonBreak,
		}},
		BridgeActive: true,
		LastUpdated:  7,
	}
	data, err := EncodeDocument(doc)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"workers", "logs", "registeredUsers", "teamNames", "loginLogs", "bridgeActive", "lastUpdated"} {
		assert.Contains(t, m, key)
	}
	w := m["workers"].([]any)[0].(map[string]any)
	assert.Equal(t, "PC-1", w["pcNumber"])
	assert.Equal(t, float64(1000), w["lastAbsenceStart"])
	assert.Equal(t, "Break", w["currentReason"])
}

func TestActiveWorkerOmitsAbsenceFields(t *testing.T) {
	data, err := json.Marshal(Worker{ID: "w1", PCNumber: "PC-1", Name: "A", Team: TeamA, Status: StatusActive})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "lastAbsenceStart")
	assert.NotContains(t, string(data), "currentReason")
}

func TestCloneIsDeep(t *testing.T) {
	start := int64(10)
	orig := Document{
		Workers:   []Worker{{ID: "w1", LastAbsenceStart: &start}},
		Logs:      []AbsenceLog{{ID: "l1"}},
		TeamNames: map[Team]string{TeamA: "Alpha"},
	}
	cp := orig.Clone()

	*cp.Workers[0].LastAbsenceStart = 99
	cp.Workers[0].ID = "changed"
	cp.Logs[0].ID = "changed"
	cp.TeamNames[TeamA] = "changed"

	assert.Equal(t, int64(10), *orig.Workers[0].LastAbsenceStart)
	assert.Equal(t, "w1", orig.Workers[0].ID)
	assert.Equal(t, "l1", orig.Logs[0].ID)
	assert.Equal(t, "Alpha", orig.TeamNames[TeamA])
}

func TestLookups(t *testing.T) {
	doc := Document{
		Workers:         []Worker{{ID: "w1", PCNumber: "PC-01"}},
		RegisteredUsers: []User{{ID: "u1", Username: "Alice"}},
	}
	assert.Equal(t, 0, doc.FindWorker("w1"))
	assert.Equal(t, -1, doc.FindWorker("missing"))
	assert.Equal(t, 0, doc.WorkerByPC("pc-01"))
	assert.Equal(t, 0, doc.UserByName(" alice "))
	assert.Equal(t, -1, doc.UserByName("bob"))
}
