package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collection-service/internal/entity"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestLogger writes one line per request. It must run after
// middleware.RequestID.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sw, r)

			log.WithFields(requestFields(r)).WithFields(logrus.Fields{
				"status":      sw.status,
				"bytes":       sw.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("http request")
		})
	}
}

func requestFields(r *http.Request) logrus.Fields {
	return logrus.Fields{
		"req_id": middleware.GetReqID(r.Context()),
		"method": r.Method,
		"path":   r.URL.Path,
	}
}

// Identity headers set by the gateway in front of the API.
const (
	HeaderActorID    = "X-Actor-Id"
	HeaderActorName  = "X-Actor-Name"
	HeaderActorRole  = "X-Actor-Role"
	HeaderCustomerID = "X-Customer-Id"
)

type actorKey struct{}

// Authenticate reads the caller from the identity headers. Requests without
// a usable identity get 401.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := entity.Actor{
			ID:   r.Header.Get(HeaderActorID),
			Name: r.Header.Get(HeaderActorName),
			Role: entity.Role(r.Header.Get(HeaderActorRole)),
		}
		if a.ID == "" {
			writeErr(w, http.StatusUnauthorized, "missing "+HeaderActorID)
			return
		}
		switch a.Role {
		case entity.RoleStaff:
		case entity.RoleCustomer:
			id, err := uuid.Parse(r.Header.Get(HeaderCustomerID))
			if err != nil || id == uuid.Nil {
				writeErr(w, http.StatusUnauthorized, "customer callers need "+HeaderCustomerID)
				return
			}
			a.CustomerID = id
		default:
			writeErr(w, http.StatusUnauthorized, "unknown role")
			return
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, a)))
	})
}

func actorFrom(ctx context.Context) entity.Actor {
	a, _ := ctx.Value(actorKey{}).(entity.Actor)
	return a
}
