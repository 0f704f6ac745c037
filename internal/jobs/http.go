package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// Service は HTTP ハンドラーが利用するジョブ操作です。
type Service interface {
	StartJob(ctx context.Context, url, language string) (string, error)
	CancelJob(jobID string) (Snapshot, error)
	GetJob(jobID string) (Snapshot, error)
	ListJobs() []Snapshot
}

type startRequest struct {
	URL      string `json:"url" binding:"required"`
	Lang     string `json:"lang"`
	Language string `json:"language"`
}

// RegisterRoutes は /transcribe-job 系のルートを登録します。
func RegisterRoutes(r gin.IRoutes, svc Service) {
	r.POST("/transcribe-job", StartHandler(svc))
	r.GET("/transcribe-job", ListHandler(svc))
	r.GET("/transcribe-job/:id", StatusHandler(svc))
	r.POST("/transcribe-job/:id/cancel", CancelHandler(svc))
	r.DELETE("/transcribe-job/:id", CancelHandler(svc))
}

// StartHandler は POST /transcribe-job のハンドラーを返します。
func StartHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "url を JSON で送ってください。",
			})
			return
		}

		mediaURL := strings.TrimSpace(req.URL)
		if !isHTTPURL(mediaURL) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "url は http(s) の URL で指定してください。",
			})
			return
		}

		lang := strings.TrimSpace(req.Lang)
		if lang == "" {
			lang = strings.TrimSpace(req.Language)
		}
		if strings.EqualFold(lang, "auto") {
			lang = ""
		}

		jobID, err := svc.StartJob(c.Request.Context(), mediaURL, lang)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
	}
}

// StatusHandler は GET /transcribe-job/:id のハンドラーを返します。
func StatusHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := jobIDParam(c)
		if !ok {
			return
		}
		snapshot, err := svc.GetJob(jobID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

// CancelHandler はジョブのキャンセルを受け付けるハンドラーを返します。
func CancelHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := jobIDParam(c)
		if !ok {
			return
		}
		snapshot, err := svc.CancelJob(jobID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, snapshot)
	}
}

// ListHandler は GET /transcribe-job のハンドラーを返します。
func ListHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jobs": svc.ListJobs()})
	}
}

func jobIDParam(c *gin.Context) (string, bool) {
	jobID := strings.TrimSpace(c.Param("id"))
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "jobId を指定してください。",
		})
		return "", false
	}
	return jobID, true
}

func respondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "JOB_NOT_FOUND",
			"message": "指定されたジョブは存在しません。",
		})
	case errors.Is(err, ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "SHUTTING_DOWN",
			"message": "サーバーが停止処理中のため受け付けできません。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
