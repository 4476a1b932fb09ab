package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/zaqqye/examguard/internal/middleware"
	"github.com/zaqqye/examguard/internal/models"
	"github.com/zaqqye/examguard/internal/pipeline"
	"github.com/zaqqye/examguard/internal/utils"
)

type AdminController struct {
	DB       *gorm.DB
	Pipeline *pipeline.Pipeline
	Auth     middleware.AuthConfig
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

func (ac *AdminController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, password, and name are required"})
		return
	}

	// Registration bootstraps the first administrator only; after that,
	// accounts are provisioned out of band.
	var count int64
	if err := ac.DB.Model(&models.Admin{}).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Registration is closed"})
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	admin := models.Admin{Email: req.Email, Password: hashed, Name: req.Name}
	if err := ac.DB.Create(&admin).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := middleware.GenerateToken(admin, ac.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"admin": gin.H{"id": admin.ID, "email": admin.Email, "name": admin.Name, "createdAt": admin.CreatedAt},
		"token": token,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (ac *AdminController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	var admin models.Admin
	if err := ac.DB.Where("email = ?", req.Email).First(&admin).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !utils.CheckPassword(admin.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.GenerateToken(admin, ac.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"admin": gin.H{"id": admin.ID, "email": admin.Email, "name": admin.Name},
		"token": token,
	})
}

func (ac *AdminController) Profile(c *gin.Context) {
	admin := currentAdmin(c)
	c.JSON(http.StatusOK, gin.H{
		"id":        admin.ID,
		"email":     admin.Email,
		"name":      admin.Name,
		"createdAt": admin.CreatedAt,
	})
}

func (ac *AdminController) ListSessions(c *gin.Context) {
	admin := currentAdmin(c)

	var sessions []models.ExamSession
	if err := ac.DB.Where("admin_id_ref = ?", admin.ID).
		Order("created_at DESC").Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(sessions))
	for i := range sessions {
		var attemptCount int64
		if err := ac.DB.Model(&models.ExamAttempt{}).
			Where("session_id_ref = ?", sessions[i].ID).
			Count(&attemptCount).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out = append(out, sessionBody(&sessions[i], attemptCount))
	}
	c.JSON(http.StatusOK, out)
}

type createSessionRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	AllowedURLs []string   `json:"allowedUrls" binding:"required"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

func (ac *AdminController) CreateSession(c *gin.Context) {
	admin := currentAdmin(c)

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and at least one allowed URL are required"})
		return
	}
	if msg, ok := validateURLs(req.AllowedURLs); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	session := models.ExamSession{
		AdminIDRef:  admin.ID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if err := session.SetURLList(req.AllowedURLs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ac.createWithUniqueCode(&session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, sessionBody(&session, 0))
}

func (ac *AdminController) GetSession(c *gin.Context) {
	session, ok := ac.ownedSession(c)
	if !ok {
		return
	}

	var attempts []models.ExamAttempt
	if err := ac.DB.Where("session_id_ref = ?", session.ID).
		Order("started_at DESC").Find(&attempts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	body := sessionBody(session, int64(len(attempts)))
	out := make([]gin.H, 0, len(attempts))
	for i := range attempts {
		violations, err := ac.Pipeline.Violations(attempts[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ab := attemptBody(&attempts[i])
		ab["violations"] = violations
		out = append(out, ab)
	}
	body["attempts"] = out
	c.JSON(http.StatusOK, body)
}

type updateSessionRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	AllowedURLs []string   `json:"allowedUrls"`
	IsActive    *bool      `json:"isActive"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

func (ac *AdminController) UpdateSession(c *gin.Context) {
	session, ok := ac.ownedSession(c)
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AllowedURLs != nil {
		if msg, ok := validateURLs(req.AllowedURLs); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		if err := session.SetURLList(req.AllowedURLs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if req.Name != nil {
		session.Name = *req.Name
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	deactivated := false
	if req.IsActive != nil {
		deactivated = session.IsActive && !*req.IsActive
		session.IsActive = *req.IsActive
	}
	if req.StartTime != nil {
		session.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		session.EndTime = req.EndTime
	}

	if err := ac.DB.Save(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Deactivating a session kicks its live students.
	if deactivated {
		ac.terminateActiveAttempts(session.ID)
	}

	var attemptCount int64
	ac.DB.Model(&models.ExamAttempt{}).Where("session_id_ref = ?", session.ID).Count(&attemptCount)
	c.JSON(http.StatusOK, sessionBody(session, attemptCount))
}

func (ac *AdminController) DeleteSession(c *gin.Context) {
	session, ok := ac.ownedSession(c)
	if !ok {
		return
	}
	if err := ac.DB.Delete(session).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (ac *AdminController) RegenerateCode(c *gin.Context) {
	session, ok := ac.ownedSession(c)
	if !ok {
		return
	}

	for i := 0; i < 5; i++ {
		code, err := utils.GenerateCode(6)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate code"})
			return
		}
		session.AccessCode = code
		err = ac.DB.Save(session).Error
		if err == nil {
			var attemptCount int64
			ac.DB.Model(&models.ExamAttempt{}).Where("session_id_ref = ?", session.ID).Count(&attemptCount)
			c.JSON(http.StatusOK, sessionBody(session, attemptCount))
			return
		}
		if !uniqueViolation(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to regenerate code"})
}

func (ac *AdminController) ListAttempts(c *gin.Context) {
	session, ok := ac.ownedSession(c)
	if !ok {
		return
	}

	var attempts []models.ExamAttempt
	if err := ac.DB.Where("session_id_ref = ?", session.ID).
		Order("started_at DESC").Find(&attempts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(attempts))
	for i := range attempts {
		violations, err := ac.Pipeline.Violations(attempts[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ab := attemptBody(&attempts[i])
		ab["violations"] = violations
		out = append(out, ab)
	}
	c.JSON(http.StatusOK, out)
}

// TerminateAttempt ends a student's attempt and pushes a terminate order to
// the locked client.
func (ac *AdminController) TerminateAttempt(c *gin.Context) {
	admin := currentAdmin(c)

	var attempt models.ExamAttempt
	if err := ac.DB.Where("id = ?", c.Param("id")).First(&attempt).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
		return
	}
	var session models.ExamSession
	if err := ac.DB.Where("id = ? AND admin_id_ref = ?", attempt.SessionIDRef, admin.ID).
		First(&session).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
		return
	}

	updated, err := ac.Pipeline.Terminate(attempt.ID, "admin_terminated")
	if err != nil {
		if errors.Is(err, pipeline.ErrAttemptEnded) {
			c.JSON(http.StatusConflict, gin.H{"error": "Attempt already ended"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to terminate attempt"})
		return
	}
	c.JSON(http.StatusOK, attemptBody(updated))
}

func (ac *AdminController) terminateActiveAttempts(sessionID string) {
	var attempts []models.ExamAttempt
	if err := ac.DB.Where("session_id_ref = ? AND status = ?", sessionID, models.AttemptActive).
		Find(&attempts).Error; err != nil {
		return
	}
	for i := range attempts {
		ac.Pipeline.Terminate(attempts[i].ID, "terminated")
	}
}

func (ac *AdminController) createWithUniqueCode(session *models.ExamSession) error {
	var err error
	for i := 0; i < 5; i++ {
		var code string
		code, err = utils.GenerateCode(6)
		if err != nil {
			return err
		}
		session.AccessCode = code
		err = ac.DB.Create(session).Error
		if err == nil {
			return nil
		}
		if !uniqueViolation(err) {
			return err
		}
		session.ID = "" // retry with a fresh insert
	}
	return err
}

func (ac *AdminController) ownedSession(c *gin.Context) (*models.ExamSession, bool) {
	admin := currentAdmin(c)
	var session models.ExamSession
	if err := ac.DB.Where("id = ? AND admin_id_ref = ?", c.Param("id"), admin.ID).
		First(&session).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return &session, true
}

func currentAdmin(c *gin.Context) models.Admin {
	aVal, _ := c.Get("admin")
	return aVal.(models.Admin)
}

func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func validateURLs(urls []string) (string, bool) {
	if len(urls) == 0 {
		return "At least one allowed URL is required", false
	}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return "Invalid URL: " + raw, false
		}
	}
	return "", true
}

func sessionBody(s *models.ExamSession, attemptCount int64) gin.H {
	return gin.H{
		"id":           s.ID,
		"name":         s.Name,
		"description":  s.Description,
		"allowedUrls":  s.URLList(),
		"accessCode":   utils.FormatCode(s.AccessCode),
		"isActive":     s.IsActive,
		"startTime":    s.StartTime,
		"endTime":      s.EndTime,
		"createdAt":    s.CreatedAt,
		"attemptCount": attemptCount,
	}
}
