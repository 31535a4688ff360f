package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/golang/snappy"

	"github.com/ironlog/ironlog/internal/identity"
	"github.com/ironlog/ironlog/internal/schema"
)

const ownerKey = "owner"

// maxBody caps request bodies after decompression.
const maxBody = 32 << 20

// Config holds configuration for the authority server.
type Config struct {
	// Secret verifies HS256 bearer tokens. Empty accepts any well-formed
	// token with a subject, for local development.
	Secret string

	// AllowOrigins for CORS (default: all)
	AllowOrigins []string

	// Logger for request activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AllowOrigins: []string{"*"},
		Logger:       log.New(os.Stderr, "[authority] ", log.LstdFlags),
	}
}

// NewRouter builds the HTTP surface over store.
func NewRouter(store *Store, config *Config) *gin.Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	}

	h := &handlers{store: store, logger: config.Logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(config.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  config.AllowOrigins,
		AllowMethods:  []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Content-Encoding", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/health", health)
	r.HEAD("/health", health)

	rpc := r.Group("/rpc")
	rpc.Use(auth(config.Secret, store), decompress())
	{
		rpc.POST("/sync_push", h.push)
		rpc.POST("/sync_pull", h.pull)
	}
	return r
}

// Serve runs the router on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Authority listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("authority server failed: %w", err)
	case <-ctx.Done():
		logger.Println("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("authority shutdown error: %w", err)
		}
		return nil
	}
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID != "" {
			c.Header("X-Request-ID", requestID)
		}
		c.Next()
		logger.Printf("%s %s %d %s request_id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond), requestID)
	}
}

// auth resolves the bearer token's subject into the owner.
func auth(secret string, store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		token := strings.TrimSpace(header[7:])

		owner, err := tokenOwner(token, secret, store.now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func tokenOwner(token, secret string, now time.Time) (string, error) {
	if secret == "" {
		claims, err := identity.ParseToken(token, now)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	}

	parsed, err := gojwt.Parse(token, func(*gojwt.Token) (any, error) {
		return []byte(secret), nil
	}, gojwt.WithValidMethods([]string{"HS256"}), gojwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims := parsed.Claims.(gojwt.MapClaims)
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID, nil
	}
	return "", identity.ErrNoSubject
}

// decompress unwraps snappy request bodies.
func decompress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetHeader("Content-Encoding"), "snappy") {
			c.Next()
			return
		}
		compressed, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		n, err := snappy.DecodedLen(compressed)
		if err != nil || n > maxBody {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid snappy body"})
			return
		}
		body, err := snappy.Decode(nil, compressed)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid snappy body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.Header.Del("Content-Encoding")
		c.Next()
	}
}

type handlers struct {
	store  *Store
	logger *log.Logger
}

func ownerFromContext(c *gin.Context) string {
	return c.GetString(ownerKey)
}

func (h *handlers) push(c *gin.Context) {
	var body struct {
		Payload map[string][]json.RawMessage `json:"payload"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	payload := make(map[schema.Table][]json.RawMessage, len(body.Payload))
	for key, rows := range body.Payload {
		table, err := schema.ParseTable(key)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payload[table] = append(payload[table], rows...)
	}

	result, err := h.store.Push(c.Request.Context(), ownerFromContext(c), payload)
	if err != nil {
		h.logger.Printf("Push failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	synced := make(map[string][]string, len(result.SyncedIDs))
	for table, ids := range result.SyncedIDs {
		synced[string(table)] = ids
	}
	c.JSON(http.StatusOK, gin.H{
		"server_time": result.ServerTime.Format(timeLayout),
		"synced_ids":  synced,
	})
}

func (h *handlers) pull(c *gin.Context) {
	var body struct {
		Since string `json:"since_server_time"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	var since time.Time
	if body.Since != "" {
		t, err := time.Parse(time.RFC3339Nano, body.Since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since_server_time"})
			return
		}
		since = t
	}

	result, err := h.store.Pull(c.Request.Context(), ownerFromContext(c), since)
	if err != nil {
		h.logger.Printf("Pull failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"server_time": result.ServerTime.Format(timeLayout)}
	for table, rows := range result.Rows {
		resp[string(table)] = rows
	}
	c.JSON(http.StatusOK, resp)
}
