package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roster/internal/auth"
	"roster/internal/queue"
	"roster/internal/roster"
	"roster/internal/student"
)

type Handler struct {
	roster *roster.Controller
	queue  queue.Queue  // nil disables the change feed
	issuer *auth.Issuer // nil disables auth
}

func New(c *roster.Controller, q queue.Queue, iss *auth.Issuer) *Handler {
	return &Handler{roster: c, queue: q, issuer: iss}
}

// Register mounts the token and student routes on r.
func (h *Handler) Register(r gin.IRouter) {
	students := r.Group("/students")
	if h.issuer != nil {
		r.POST("/tokens", h.IssueToken)
		r.POST("/tokens/refresh", h.RefreshToken)
		students.Use(auth.ClientAuth(*h.issuer))
	}
	students.GET("", h.ListStudents)
	students.POST("", h.CreateStudent)
	students.POST("/reload", h.ReloadStudents)
	students.PUT("/:id", h.UpdateStudent)
	students.DELETE("/:id", h.DeleteStudent)
}

// ---------- Tokens ----------

func (h *Handler) IssueToken(c *gin.Context) {
	var req struct {
		ClientID     string `json:"client_id" binding:"required"`
		ClientSecret string `json:"client_secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := h.issuer.IssueFor(req.ClientID, "client", req.ClientSecret)
	if errors.Is(err, auth.ErrBadSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	writeTokens(c, http.StatusCreated, tokens)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := h.issuer.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	writeTokens(c, http.StatusOK, tokens)
}

func writeTokens(c *gin.Context, status int, tokens auth.TokenPair) {
	c.JSON(status, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Students ----------

// ListStudents returns the controller's list, loading it on first use.
// Query: q (search), where (expression), sort, dir, refresh=1.
func (h *Handler) ListStudents(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := parseView(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("refresh") == "1" {
		_, err = h.roster.Reload(ctx)
	} else {
		err = h.roster.EnsureLoaded(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	snap, err := h.roster.Snapshot(view)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func parseView(c *gin.Context) (roster.View, error) {
	v := roster.View{Query: c.Query("q")}
	if s := c.Query("sort"); s != "" {
		key, ok := roster.ParseSortKey(s)
		if !ok {
			return v, errors.New("unknown sort key " + s)
		}
		v.Sort = key
	}
	switch d := roster.Direction(strings.ToLower(c.Query("dir"))); d {
	case "", roster.Asc, roster.Desc:
		v.Dir = d
	default:
		return v, errors.New("dir must be asc or desc")
	}
	if src := strings.TrimSpace(c.Query("where")); src != "" {
		p, err := roster.CompileWhere(src)
		if err != nil {
			return v, err
		}
		v.Where = p
	}
	return v, nil
}

func (h *Handler) ReloadStudents(c *gin.Context) {
	list, err := h.roster.Reload(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

type createRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required,email"`
	Course string `json:"course" binding:"required"`
	Status string `json:"status"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.roster.Create(c.Request.Context(), student.Draft(req))
	if err != nil {
		writeError(c, err)
		return
	}
	h.publish(c, queue.StudentCreated, rec.ID)
	c.JSON(http.StatusCreated, gin.H{"student": rec})
}

type updateRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Course *string `json:"course"`
	Status *string `json:"status"`
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	rec, err := h.roster.Update(c.Request.Context(), id, student.Patch(req))
	if err != nil {
		writeError(c, err)
		return
	}
	h.publish(c, queue.StudentUpdated, id)
	c.JSON(http.StatusOK, gin.H{"student": rec})
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id := c.Param("id")
	ack, err := h.roster.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	h.publish(c, queue.StudentDeleted, id)
	c.Data(http.StatusOK, "application/json; charset=utf-8", ack)
}

func (h *Handler) publish(c *gin.Context, kind, id string) {
	if h.queue == nil {
		return
	}
	if err := h.queue.Publish(c.Request.Context(), queue.Change(kind, id)); err != nil {
		log.Printf("queue publish %s %s failed: %v", kind, id, err)
	}
}

func writeError(c *gin.Context, err error) {
	if roster.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": student.ErrNotFound.Error()})
		return
	}
	if roster.IsConflict(err) {
		c.JSON(http.StatusConflict, gin.H{"error": student.ErrDuplicateID.Error()})
		return
	}
	var oerr *roster.OpError
	if errors.As(err, &oerr) {
		log.Printf("%s: %v", oerr.Message, oerr.Err)
		c.JSON(http.StatusBadGateway, gin.H{"error": oerr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
