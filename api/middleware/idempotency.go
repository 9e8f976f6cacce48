package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/kitstock-backend/api/responses"
	pkgerrors "github.com/angelmondragon/kitstock-backend/pkg/errors"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/kitstock-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	reservationReplayTTL = 24 * time.Hour
	orderReplayTTL       = 7 * 24 * time.Hour
	// A claim outliving this window is treated as abandoned by a crashed request.
	inflightClaimTTL = time.Minute
)

// replayRule names a mutating route whose responses are kept for replay.
type replayRule struct {
	name   string
	method string
	match  func(path string) bool
	ttl    time.Duration
}

var replayRules = []replayRule{
	{name: "reserve", method: http.MethodPost, match: pathIs("/api/v1/cart/reservations"), ttl: reservationReplayTTL},
	{name: "adjust_part", method: http.MethodPost, match: pathBetween("/api/v1/admin/parts/", "/adjustments"), ttl: reservationReplayTTL},
	{name: "create_offering", method: http.MethodPost, match: pathIs("/api/v1/provider/offerings"), ttl: reservationReplayTTL},
	{name: "checkout", method: http.MethodPost, match: pathIs("/api/v1/orders"), ttl: orderReplayTTL},
	{name: "order_status", method: http.MethodPatch, match: pathBetween("/api/v1/orders/", "/status"), ttl: orderReplayTTL},
}

// storedReply is the redis value. A record with Pending set marks a request
// that has claimed the key but not finished yet.
type storedReply struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// stock-moving routes. The key is claimed before the handler runs, so two
// concurrent checkouts with the same key cannot both commit stock.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchReplayRule(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintBody(body)
			key := store.IdempotencyKey(replayScope(r, rule), clientKey)

			claim, _ := json.Marshal(storedReply{Pending: true, Fingerprint: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(claim), inflightClaimTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, w, store, key, fingerprint, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				// Server faults are not final; free the key so the client can retry.
				if delErr := store.Del(ctx, key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}

			reply, err := json.Marshal(storedReply{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				logError(ctx, logg, "encode idempotency reply", err)
				return
			}
			if err := store.Set(ctx, key, string(reply), rule.ttl); err != nil {
				logError(ctx, logg, "store idempotency reply", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Claim expired between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency reply"))
		return
	}

	var reply storedReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency reply"))
		return
	}
	if reply.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if reply.Pending {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
		return
	}

	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}

// replayScope keeps keys from different actors and routes apart.
func replayScope(r *http.Request, rule replayRule) string {
	return strings.Join([]string{
		rule.name,
		UserIDFromContext(r.Context()),
		ProviderIDFromContext(r.Context()),
		strings.TrimSuffix(r.URL.Path, "/"),
	}, "|")
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(body))
	return hex.EncodeToString(sum[:])
}

// matchReplayRule works on the concrete path: group middleware runs before
// mounted subrouters resolve their route patterns.
func matchReplayRule(method, path string) (replayRule, bool) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return replayRule{}, false
	}
	for _, rule := range replayRules {
		if rule.method == method && rule.match(path) {
			return rule, true
		}
	}
	return replayRule{}, false
}

func pathIs(want string) func(string) bool {
	return func(path string) bool { return path == want }
}

func pathBetween(prefix, suffix string) func(string) bool {
	return func(path string) bool {
		return len(path) > len(prefix)+len(suffix) &&
			strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
