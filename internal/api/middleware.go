package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Claims is the subset of a Supabase access token this service reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "apikey"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "*":
			// Wildcard cannot be combined with credentials.
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			return cors.New(cfg)
		case o != "":
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	cfg.AllowCredentials = true
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:8081"}
	}
	return cors.New(cfg)
}

// AuthMiddleware verifies the bearer token against the project's JWT secret
// and stores the subject as user_id.
func AuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" || len(key) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.Subject == "" {
			logger.Log.Debug("rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// DemoAuth treats every request as coming from userID.
func DemoAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

type doctorResolver interface {
	CurrentDoctor(ctx context.Context, userID string) (models.DoctorProfile, error)
}

// RequireDoctor resolves the doctor behind the authenticated user. Users
// without a doctor record are refused.
func RequireDoctor(r doctorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := r.CurrentDoctor(c.Request.Context(), c.GetString("user_id"))
		if err != nil {
			if apperror.IsNotFound(err) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Doctor access required"})
				return
			}
			respondError(c, err, "Failed to load doctor")
			c.Abort()
			return
		}
		c.Set("doctor", d)
		c.Set("doctor_id", d.ID)
		c.Next()
	}
}

func currentDoctor(c *gin.Context) models.DoctorProfile {
	v, _ := c.Get("doctor")
	d, _ := v.(models.DoctorProfile)
	return d
}

type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// RateLimit allows each user rps requests per second with the given burst.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 5
	}
	pool := &limiterPool{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
	return func(c *gin.Context) {
		key := c.GetString("user_id")
		if key == "" {
			key = c.ClientIP()
		}
		if !pool.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many messages, slow down"})
			return
		}
		c.Next()
	}
}
