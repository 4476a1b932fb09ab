package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/examguard/internal/config"
	"github.com/zaqqye/examguard/internal/controllers"
	"github.com/zaqqye/examguard/internal/middleware"
	"github.com/zaqqye/examguard/internal/pipeline"
	"github.com/zaqqye/examguard/internal/ws"
)

func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config, hubs *ws.Hubs, pipe *pipeline.Pipeline) {
	expires, err := time.ParseDuration(cfg.JWTExpiresIn + "m")
	if err != nil || expires == 0 {
		expires = 24 * time.Hour
	}
	authCfg := middleware.AuthConfig{JWTSecret: cfg.JWTSecret, JWTExpiresIn: expires}

	adminCtrl := &controllers.AdminController{DB: db, Pipeline: pipe, Auth: authCfg}
	studentCtrl := &controllers.StudentController{Pipeline: pipe}

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Student endpoints are unauthenticated; the access code is the gate.
	student := r.Group("/api/student")
	{
		student.POST("/validate-code", studentCtrl.ValidateCode)
		student.POST("/start-attempt", studentCtrl.StartAttempt)
		student.POST("/report-violation", studentCtrl.ReportViolation)
		student.POST("/end-attempt", studentCtrl.EndAttempt)
		student.POST("/heartbeat", studentCtrl.Heartbeat)
		student.GET("/attempt/:id/status", studentCtrl.AttemptStatus)
	}

	admin := r.Group("/api/admin")
	{
		admin.POST("/register", adminCtrl.Register)
		admin.POST("/login", adminCtrl.Login)

		authMW := middleware.AuthMiddleware(db, authCfg)
		protected := admin.Group("", authMW)
		{
			protected.GET("/profile", adminCtrl.Profile)

			protected.GET("/sessions", adminCtrl.ListSessions)
			protected.POST("/sessions", adminCtrl.CreateSession)
			protected.GET("/sessions/:id", adminCtrl.GetSession)
			protected.PUT("/sessions/:id", adminCtrl.UpdateSession)
			protected.DELETE("/sessions/:id", adminCtrl.DeleteSession)
			protected.POST("/sessions/:id/regenerate-code", adminCtrl.RegenerateCode)
			protected.GET("/sessions/:id/attempts", adminCtrl.ListAttempts)
			protected.POST("/attempts/:id/terminate", adminCtrl.TerminateAttempt)
		}
	}

	authMW := middleware.AuthMiddleware(db, authCfg)
	r.GET("/api/ws/monitor", authMW, ws.MonitorHandler(db, hubs.Monitor))
	r.GET("/api/ws/agent", ws.AgentHandler(db, hubs.Agent))
}
