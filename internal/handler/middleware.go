package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	actorKey     = "actor"
	requestIDKey = "request_id"

	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserName  = "X-User-Name"
	HeaderUserRole  = "X-User-Role"
)

var errNoIdentity = errors.New("no identity")

// Authenticator resolves the caller from gateway headers or a bearer JWT.
type Authenticator struct {
	jwtSecret []byte
}

func NewAuthenticator(jwtSecret string) *Authenticator {
	return &Authenticator{jwtSecret: []byte(jwtSecret)}
}

// Optional attaches the actor when one is present. Malformed credentials
// are still rejected.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return a.middleware(false, false)
}

// Required rejects requests without an identity.
func (a *Authenticator) Required() gin.HandlerFunc {
	return a.middleware(true, false)
}

// Stream is Required but also accepts ?token= since EventSource cannot set
// headers.
func (a *Authenticator) Stream() gin.HandlerFunc {
	return a.middleware(true, true)
}

func (a *Authenticator) middleware(required, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := a.resolve(c, allowQuery)
		switch {
		case errors.Is(err, errNoIdentity):
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		default:
			c.Set(actorKey, actor)
		}
		c.Next()
	}
}

func (a *Authenticator) resolve(c *gin.Context, allowQuery bool) (model.Actor, error) {
	if userID := c.GetHeader(HeaderUserID); userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			return model.Actor{}, errors.New("invalid user ID")
		}
		return model.Actor{
			UserID:   id,
			Username: c.GetHeader(HeaderUserName),
			Role:     parseRole(c.GetHeader(HeaderUserRole)),
		}, nil
	}

	token := ""
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if token == "" && allowQuery {
		token = c.Query("token")
	}
	if token == "" {
		return model.Actor{}, errNoIdentity
	}

	claims, err := a.validateToken(token)
	if err != nil {
		return model.Actor{}, err
	}
	return actorFromClaims(claims)
}

func (a *Authenticator) validateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	return claims, nil
}

func actorFromClaims(claims jwt.MapClaims) (model.Actor, error) {
	userID, _ := claims["user_id"].(string)
	id, err := uuid.Parse(userID)
	if err != nil {
		return model.Actor{}, errors.New("invalid token subject")
	}
	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)
	return model.Actor{UserID: id, Username: name, Role: parseRole(role)}, nil
}

// Unknown roles get the least privilege.
func parseRole(s string) model.Role {
	r := model.Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return model.RoleUser
	}
	return r
}

// actorFrom returns the actor attached by the authenticator.
func actorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// RequestLogger tags each request with an id and logs one line when it ends.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		entry := log.WithRequestID(requestID).WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if actor, ok := actorFrom(c); ok {
			entry = entry.WithField("user_id", actor.UserID.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

// Instrument records request counts, latency and in-flight requests.
func Instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
