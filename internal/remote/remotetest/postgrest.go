// Package remotetest provides an in-process PostgREST-style server for
// exercising HTTPStore and everything built on it.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Request records one request the server received.
type Request struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Auth   string
	Prefer string
	Body   string
}

// PostgREST emulates the subset of PostgREST used by the HTTP store:
// GET/PATCH filtered by ?id=eq.<key> and POST to insert.
type PostgREST struct {
	APIKey string

	mu       sync.Mutex
	rows     map[string]map[string]json.RawMessage // table -> id -> payload
	requests []Request
	failures []int

	server *httptest.Server
}

// NewPostgREST starts a server that accepts apiKey. Call Close when done.
func NewPostgREST(apiKey string) *PostgREST {
	gin.SetMode(gin.TestMode)
	p := &PostgREST{
		APIKey: apiKey,
		rows:   make(map[string]map[string]json.RawMessage),
	}

	r := gin.New()
	r.Use(p.record, p.injectFailure, p.authenticate)
	r.GET("/rest/v1/:table", p.handleGet)
	r.PATCH("/rest/v1/:table", p.handlePatch)
	r.POST("/rest/v1/:table", p.handlePost)

	p.server = httptest.NewServer(r)
	return p
}

// URL returns the server base URL.
func (p *PostgREST) URL() string {
	return p.server.URL
}

// Close shuts the server down.
func (p *PostgREST) Close() {
	p.server.Close()
}

// Put stores payload under table/id.
func (p *PostgREST) Put(table, id string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rows[table] == nil {
		p.rows[table] = make(map[string]json.RawMessage)
	}
	p.rows[table][id] = append(json.RawMessage(nil), payload...)
}

// Get returns the stored payload for table/id.
func (p *PostgREST) Get(table, id string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, ok := p.rows[table][id]
	return payload, ok
}

// Requests returns a copy of all recorded requests.
func (p *PostgREST) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// CountMethod returns how many requests used method.
func (p *PostgREST) CountMethod(method string) int {
	n := 0
	for _, r := range p.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// FailNext makes the next request answer with status.
func (p *PostgREST) FailNext(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, status)
}

func (p *PostgREST) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = c.GetRawData()
	}
	p.mu.Lock()
	p.requests = append(p.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.RawQuery,
		APIKey: c.GetHeader("apikey"),
		Auth:   c.GetHeader("Authorization"),
		Prefer: c.GetHeader("Prefer"),
		Body:   string(body),
	})
	p.mu.Unlock()
	c.Set("body", body)
	c.Next()
}

func (p *PostgREST) injectFailure(c *gin.Context) {
	p.mu.Lock()
	var status int
	if len(p.failures) > 0 {
		status = p.failures[0]
		p.failures = p.failures[1:]
	}
	p.mu.Unlock()
	if status != 0 {
		c.AbortWithStatusJSON(status, gin.H{"message": "injected failure"})
		return
	}
	c.Next()
}

func (p *PostgREST) authenticate(c *gin.Context) {
	if c.GetHeader("apikey") != p.APIKey || c.GetHeader("Authorization") != "Bearer "+p.APIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid api key"})
		return
	}
	c.Next()
}

type row struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// idFilter parses "?id=eq.<key>".
func idFilter(c *gin.Context) (string, bool) {
	return strings.CutPrefix(c.Query("id"), "eq.")
}

func (p *PostgREST) handleGet(c *gin.Context) {
	table := c.Param("table")
	id, ok := idFilter(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id filter required"})
		return
	}
	out := []row{}
	if payload, found := p.Get(table, id); found {
		out = append(out, row{ID: id, Payload: payload})
	}
	c.JSON(http.StatusOK, out)
}

func (p *PostgREST) handlePatch(c *gin.Context) {
	table := c.Param("table")
	id, ok := idFilter(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id filter required"})
		return
	}
	var in row
	if err := json.Unmarshal(c.MustGet("body").([]byte), &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	out := []row{}
	if _, found := p.Get(table, id); found {
		p.Put(table, id, in.Payload)
		out = append(out, row{ID: id, Payload: in.Payload})
	}
	c.JSON(http.StatusOK, out)
}

func (p *PostgREST) handlePost(c *gin.Context) {
	table := c.Param("table")
	var in row
	if err := json.Unmarshal(c.MustGet("body").([]byte), &in); err != nil || in.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id and payload required"})
		return
	}
	if _, found := p.Get(table, in.ID); found {
		c.JSON(http.StatusConflict, gin.H{"message": "duplicate key"})
		return
	}
	p.Put(table, in.ID, in.Payload)
	c.Status(http.StatusCreated)
}
