package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/examguard/internal/models"
	"github.com/zaqqye/examguard/internal/pipeline"
)

type StudentController struct {
	Pipeline *pipeline.Pipeline
}

type validateCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (sc *StudentController) ValidateCode(c *gin.Context) {
	var req validateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Access code is required"})
		return
	}

	session, err := sc.Pipeline.Redeem(req.Code)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid access code"})
		case errors.Is(err, pipeline.ErrSessionInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "This exam session is not active"})
		case errors.Is(err, pipeline.ErrSessionNotStarted):
			c.JSON(http.StatusForbidden, gin.H{"error": "This exam has not started yet"})
		case errors.Is(err, pipeline.ErrSessionEnded):
			c.JSON(http.StatusForbidden, gin.H{"error": "This exam has ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate code"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":   session.ID,
		"name":        session.Name,
		"description": session.Description,
		"allowedUrls": session.URLList(),
		"startTime":   session.StartTime,
		"endTime":     session.EndTime,
	})
}

type startAttemptRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	StudentName string `json:"studentName"`
	StudentID   string `json:"studentId"`
}

func (sc *StudentController) StartAttempt(c *gin.Context) {
	var req startAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID is required"})
		return
	}

	attempt, session, err := sc.Pipeline.StartAttempt(
		req.SessionID, req.StudentName, req.StudentID,
		c.ClientIP(), c.Request.UserAgent(),
	)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, pipeline.ErrSessionInactive):
			c.JSON(http.StatusForbidden, gin.H{"error": "This exam session is not active"})
		case errors.Is(err, pipeline.ErrSessionNotStarted):
			c.JSON(http.StatusForbidden, gin.H{"error": "This exam has not started yet"})
		case errors.Is(err, pipeline.ErrSessionEnded):
			c.JSON(http.StatusForbidden, gin.H{"error": "This exam has ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start attempt"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"attemptId":   attempt.ID,
		"sessionId":   session.ID,
		"sessionName": session.Name,
		"allowedUrls": session.URLList(),
		"startedAt":   attempt.StartedAt,
		"endTime":     session.EndTime,
	})
}

type reportViolationRequest struct {
	AttemptID string `json:"attemptId" binding:"required"`
	Violation struct {
		Type        models.ViolationType `json:"type" binding:"required"`
		Description string               `json:"description" binding:"required"`
		Details     string               `json:"details"`
	} `json:"violation" binding:"required"`
}

func (sc *StudentController) ReportViolation(c *gin.Context) {
	var req reportViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Attempt ID and violation are required"})
		return
	}
	if !models.KnownViolationType(req.Violation.Type) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown violation type"})
		return
	}

	if _, err := sc.Pipeline.ReportViolation(
		req.AttemptID, req.Violation.Type,
		req.Violation.Description, req.Violation.Details,
	); err != nil {
		if errors.Is(err, pipeline.ErrAttemptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to report violation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Violation reported"})
}

type endAttemptRequest struct {
	AttemptID string `json:"attemptId" binding:"required"`
	Reason    string `json:"reason"`
}

func (sc *StudentController) EndAttempt(c *gin.Context) {
	var req endAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Attempt ID is required"})
		return
	}

	attempt, err := sc.Pipeline.EndAttempt(req.AttemptID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrAttemptNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
		case errors.Is(err, pipeline.ErrAttemptEnded):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Attempt already ended"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end attempt"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Attempt ended",
		"attempt": attemptBody(attempt),
	})
}

type heartbeatRequest struct {
	AttemptID string `json:"attemptId" binding:"required"`
}

func (sc *StudentController) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Attempt ID is required"})
		return
	}

	if err := sc.Pipeline.Heartbeat(req.AttemptID); err != nil {
		if errors.Is(err, pipeline.ErrAttemptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record heartbeat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (sc *StudentController) AttemptStatus(c *gin.Context) {
	info, err := sc.Pipeline.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, pipeline.ErrAttemptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Attempt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          info.Status,
		"shouldTerminate": info.ShouldTerminate,
		"endTime":         info.EndTime,
	})
}

func attemptBody(a *models.ExamAttempt) gin.H {
	return gin.H{
		"id":          a.ID,
		"sessionId":   a.SessionIDRef,
		"studentName": a.StudentName,
		"studentId":   a.StudentID,
		"ipAddress":   a.IPAddress,
		"userAgent":   a.UserAgent,
		"status":      a.Status,
		"startedAt":   a.StartedAt,
		"endedAt":     a.EndedAt,
	}
}
