package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/shiftguard/internal/account"
	"github.com/roach88/shiftguard/internal/attendance"
	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/report"
)

// noticeTitle heads every blocking notice shown for a denied action.
const noticeTitle = "Operation Halt"

// writeError maps domain errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	var pe *attendance.PolicyError
	var ve *attendance.ValidationError
	switch {
	case errors.As(err, &pe):
		c.JSON(http.StatusForbidden, gin.H{"error": pe.Message, "code": pe.Code, "notice": noticeTitle})
	case errors.As(err, &ve) && ve.Code == attendance.ErrCodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": ve.Message, "code": ve.Code})
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Message, "code": ve.Code, "field": ve.Field})
	case errors.Is(err, account.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, account.ErrNoUsers), errors.Is(err, account.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, account.ErrRecoveryOwnerOnly):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// bindOptionalJSON decodes the body into dst; an empty body leaves dst as is.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// publicDocument strips credentials before a document leaves the process.
func publicDocument(doc model.Document) model.Document {
	for i := range doc.RegisteredUsers {
		doc.RegisteredUsers[i].Password = ""
	}
	return doc
}

func (s *Server) healthz(c *gin.Context) {
	st := s.engine.Status()
	code := http.StatusOK
	if !st.Initialized {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":      http.StatusText(code),
		"initialized": st.Initialized,
		"dirty":       st.Dirty,
		"busy":        st.Busy,
	})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := s.accounts.Login(req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	token, exp, err := issueToken(user.Username, user.Role, s.opts.Issuer, s.opts.SigningKey, s.opts.SessionTTL, s.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token": token,
		"expires_at":   exp.Unix(),
		"username":     user.Username,
		"role":         user.Role,
	})
}

func (s *Server) logout(c *gin.Context) {
	s.accounts.Logout()
	c.Status(http.StatusNoContent)
}

func (s *Server) register(c *gin.Context) {
	var req account.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.accounts.Register(req)
	if err != nil {
		writeError(c, err)
		return
	}
	user.Password = ""
	c.JSON(http.StatusCreated, user)
}

func (s *Server) recoverPassword(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	writeError(c, s.accounts.RecoverPassword(req.Username))
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, publicDocument(s.engine.Snapshot()))
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) sync(c *gin.Context) {
	if err := s.engine.Sync(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "status": s.engine.Status()})
		return
	}
	c.JSON(http.StatusOK, s.engine.Status())
}

func workerIn(doc model.Document, id string) (model.Worker, bool) {
	i := doc.FindWorker(id)
	if i < 0 {
		return model.Worker{}, false
	}
	return doc.Workers[i], true
}

func (s *Server) toggleWorker(c *gin.Context) {
	var req struct {
		Reason model.Reason `json:"reason"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")

	// Accounts with role User control only the worker carrying their name.
	claims := claimsFrom(c)
	if claims.Role == model.RoleUser {
		w, ok := workerIn(s.engine.Snapshot(), id)
		if ok && !strings.EqualFold(strings.TrimSpace(w.Name), strings.TrimSpace(claims.Subject)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "you can only update your own status", "code": "ROLE_DENIED", "notice": noticeTitle})
			return
		}
	}

	doc, err := s.gw.ToggleStatus(id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	w, _ := workerIn(doc, id)
	c.JSON(http.StatusOK, w)
}

func (s *Server) addWorker(c *gin.Context) {
	var req attendance.NewWorker
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w, err := s.gw.AddWorker(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (s *Server) updateWorker(c *gin.Context) {
	var req attendance.WorkerUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	doc, err := s.gw.UpdateWorker(id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	w, _ := workerIn(doc, id)
	c.JSON(http.StatusOK, w)
}

func (s *Server) deleteWorker(c *gin.Context) {
	if _, err := s.gw.DeleteWorker(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) bulk(c *gin.Context) {
	var req struct {
		Team   string       `json:"team" binding:"required"`
		Status model.Status `json:"status" binding:"required"`
		Reason model.Reason `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	doc, err := s.gw.BulkSetStatus(req.Team, req.Status, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": doc.Workers})
}

func (s *Server) renameTeam(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	doc, err := s.gw.RenameTeam(model.Team(c.Param("team")), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teamNames": doc.TeamNames})
}

func (s *Server) deleteLog(c *gin.Context) {
	if _, err := s.gw.DeleteLog(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) flushLogs(c *gin.Context) {
	if _, err := s.gw.FlushLogs(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteLoginLog(c *gin.Context) {
	if _, err := s.gw.DeleteLoginLog(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteUser(c *gin.Context) {
	if _, err := s.gw.DeleteUser(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resetRoster(c *gin.Context) {
	doc, err := s.gw.ResetRoster()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workers": doc.Workers})
}

func (s *Server) toggleBridge(c *gin.Context) {
	doc, err := s.gw.ToggleBridge()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bridgeActive": doc.BridgeActive})
}

func (s *Server) reports(c *gin.Context) {
	var f report.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	claims := claimsFrom(c)
	viewer := report.Viewer{Username: claims.Subject, Role: claims.Role}
	c.JSON(http.StatusOK, report.Build(s.engine.Snapshot(), f, viewer))
}

func (s *Server) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, report.BuildDashboard(s.engine.Snapshot(), s.opts.Location))
}
