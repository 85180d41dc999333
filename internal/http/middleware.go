package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	SessionCookieName = "storefront_session"
	SessionHeader     = "X-Session-ID"
	sessionCookieTTL  = 30 * 24 * time.Hour
)

// RequestIDMiddleware echoes the request id chosen by chi's RequestID back to
// the client.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(middleware.RequestIDHeader)
		}
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(middleware.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PeerMiddleware records RemoteAddr before middleware.RealIP replaces it with a
// client-supplied header, so rate limiting keys on the actual connection.
func PeerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerKey, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger writes one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SessionMiddleware attaches the shopper's session. The id comes from the
// session cookie or the X-Session-ID header; a missing or malformed id starts
// a new session.
func SessionMiddleware(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionID(r)
			if id == "" {
				id = uuid.New().String()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionCookieTTL.Seconds()),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(SessionHeader, id)

			s := sessions.Open(r.Context(), id)
			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionID(r *http.Request) string {
	candidates := []string{r.Header.Get(SessionHeader)}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		candidates = append([]string{c.Value}, candidates...)
	}
	for _, c := range candidates {
		if id, err := uuid.Parse(strings.TrimSpace(c)); err == nil {
			return id.String()
		}
	}
	return ""
}

type userClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the signed-in user from an HS256 bearer token.
// Requests without a token continue as guests; a bad token is rejected.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := parseBearer(header, key)
			if err != nil {
				zap.L().Debug("rejected bearer token",
					zap.String("request_id", getRequestID(r.Context())),
					zap.Error(err))
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var errNoSigningKey = errors.New("no signing key configured")

func parseBearer(header string, key []byte) (*domain.User, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, errors.New("authorization header is not a bearer token")
	}
	if len(key) == 0 {
		return nil, errNoSigningKey
	}

	claims := &userClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &domain.User{ID: claims.Subject, Email: claims.Email}, nil
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
	lastGC   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		lastGC:   time.Now(),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastGC) > rl.idle {
		for k, c := range rl.limiters {
			if now.Sub(c.lastSeen) > rl.idle {
				delete(rl.limiters, k)
			}
		}
		rl.lastGC = now
	}

	c, ok := rl.limiters[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = c
	}
	c.lastSeen = now
	return c.limiter.Allow()
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			retry := 1
			if rl.limit > 0 {
				retry = int(math.Ceil(1 / float64(rl.limit)))
			}
			w.Header().Set("Retry-After", fmt.Sprint(retry))
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	addr := getPeer(r.Context())
	if addr == "" {
		addr = r.RemoteAddr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
