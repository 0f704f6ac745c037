// Package auth はシングルユーザー向けのログインとセッション検証を提供します。
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// Credentials はログインを許可するアカウントです。
type Credentials struct {
	Username     string
	PasswordHash string // bcrypt
}

// Manager はログイン処理とセッション検証をまとめた構造体です。
// Username が空の場合は認証を行わず、ミドルウェアは素通しします。
type Manager struct {
	creds   Credentials
	limiter *loginLimiter
	now     func() time.Time
}

// NewManager は認証マネージャーを作成します。
func NewManager(creds Credentials) *Manager {
	return &Manager{
		creds:   creds,
		limiter: newLoginLimiter(time.Now),
		now:     time.Now,
	}
}

// Enabled はログインが必須かどうかを返します。
func (m *Manager) Enabled() bool {
	return m.creds.Username != ""
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes は /auth/login と /auth/logout を登録します。
func (m *Manager) RegisterRoutes(r gin.IRoutes) {
	// ログイン時はセッション未生成なので CSRF 検証は不要
	r.POST("/auth/login", m.Login)
	r.POST("/auth/logout", m.RequireLogin(), m.VerifyCSRF(), m.Logout)
}

// Login は /auth/login のハンドラーです。
// 成功するとセッションを発行し、CSRF トークンをヘッダーで返します。
func (m *Manager) Login(c *gin.Context) {
	if !m.Enabled() {
		abort(c, http.StatusNotFound, "AUTH_DISABLED", "認証は無効です")
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_INPUT", "username と password を JSON で送ってください")
		return
	}

	ip := c.ClientIP()
	if retryAfter := m.limiter.lockedFor(ip); retryAfter > 0 {
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		abort(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "一定時間後に再度お試しください")
		return
	}

	if req.Username != m.creds.Username || !m.verifyPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              "INVALID_CREDENTIALS",
			"message":           "ユーザー名またはパスワードが正しくありません",
			"remainingAttempts": m.limiter.fail(ip),
		})
		return
	}
	m.limiter.reset(ip)

	token, err := generateToken()
	if err != nil {
		abort(c, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "CSRF トークンの生成に失敗しました")
		return
	}

	session := sessions.Default(c)
	now := m.now().Unix()
	session.Set(sessionKeyUser, m.creds.Username)
	session.Set(sessionKeyIssuedAt, now)
	session.Set(sessionKeyLastActive, now)
	session.Set(sessionKeyCSRF, token)
	if err := session.Save(); err != nil {
		abort(c, http.StatusInternalServerError, "SESSION_SAVE_FAILED", "セッションの保存に失敗しました")
		return
	}

	c.Header(CSRFHeader, token)
	c.Status(http.StatusNoContent)
}

// Logout は /auth/logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		abort(c, http.StatusInternalServerError, "SESSION_SAVE_FAILED", "セッションの削除に失敗しました")
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Manager) verifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(m.creds.PasswordHash), []byte(password)) == nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
