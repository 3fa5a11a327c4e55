// Package webhook exposes the remote trigger endpoint that lets a push
// event from the hosting service drive an unattended update. This is the
// only externally-reachable surface in the system, so every inbound request
// is logged before any processing.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iotlab/pubsub-ops/internal/config"
	"github.com/iotlab/pubsub-ops/internal/log"
	"github.com/iotlab/pubsub-ops/internal/update"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	eventHeader     = "X-GitHub-Event"
	maxBodyBytes    = 1 << 20
)

// Trigger starts an unattended update; the coordinator implements it.
type Trigger interface {
	UpdateToLatest(ctx context.Context, sink update.ProgressSink) (update.Result, error)
}

// pushPayload is the subset of the push event body we act on.
type pushPayload struct {
	Ref     string `json:"ref"`
	Commits []struct {
		Message string `json:"message"`
	} `json:"commits"`
}

// Server is the HTTP listener for remote update triggers.
type Server struct {
	settings config.WebhookSettings
	treePath string
	trigger  Trigger
	logger   log.Logger
	ring     *Ring
	mux      *http.ServeMux
	updates  sync.WaitGroup
}

// NewServer builds the listener. When no secret is configured the webhook
// endpoint accepts unverified requests; this insecure default is flagged
// loudly at startup and on every health check.
func NewServer(settings config.WebhookSettings, treePath string, trigger Trigger, logger log.Logger) *Server {
	s := &Server{
		settings: settings,
		treePath: treePath,
		trigger:  trigger,
		logger:   logger,
		ring:     NewRing(settings.LogCapacity),
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/webhook", s.handleWebhook)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/logs", s.handleLogs)
	s.mux.HandleFunc("/trigger", s.handleTrigger)

	return s
}

// Handler returns the request-logging handler tree, exposed for tests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("Inbound request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"event", r.Header.Get(eventHeader))
		s.mux.ServeHTTP(w, r)
	})
}

// ListenAndServe runs the listener until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.settings.Secret == "" {
		s.logger.Warn("No webhook secret configured: push events are accepted UNVERIFIED")
		s.logger.Warn("Set WEBHOOK_SECRET (or webhook.secret) before exposing this listener")
		s.ring.Add("warning", "webhook listener started without a secret; requests are unverified")
	} else {
		s.ring.Add("info", "webhook listener started")
	}

	addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	s.logger.Info("Webhook listener started", "addr", addr, "targetBranch", s.settings.TargetBranch)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		// An accepted update owns the tree until it finishes; exiting
		// with one in flight would strand a half-applied checkout.
		s.logger.Info("Waiting for in-flight update to finish")
		s.updates.Wait()
		return err
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	if s.settings.Secret != "" {
		if !verifySignature(body, r.Header.Get(signatureHeader), s.settings.Secret) {
			s.logger.Warn("Rejecting webhook with invalid signature", "remote", r.RemoteAddr)
			s.ring.Add("warning", "rejected webhook request with invalid signature")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	if event := r.Header.Get(eventHeader); event != "push" {
		s.logger.Info("Ignoring non-push event", "event", event)
		s.respond(w, http.StatusOK, map[string]string{
			"status":  "ignored",
			"message": fmt.Sprintf("event %q is not a push event", event),
		})
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	branch := strings.TrimPrefix(payload.Ref, "refs/heads/")
	if branch != s.settings.TargetBranch {
		s.logger.Info("Ignoring push to non-target branch", "branch", branch)
		s.respond(w, http.StatusOK, map[string]string{
			"status":  "ignored",
			"message": fmt.Sprintf("push is not to %s", s.settings.TargetBranch),
		})
		return
	}

	s.logger.Info("Push to target branch, triggering update",
		"branch", branch, "commits", len(payload.Commits))
	s.ring.Add("info", fmt.Sprintf("webhook push to %s with %d commit(s), update triggered", branch, len(payload.Commits)))

	s.startUpdate("webhook")
	s.respond(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "update started",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, statErr := os.Stat(s.treePath)
	s.respond(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"repoPresent":      statErr == nil,
		"secretConfigured": s.settings.Secret != "",
		"targetBranch":     s.settings.TargetBranch,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}
	s.respond(w, http.StatusOK, s.ring.Last(n))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Manual trigger", "remote", r.RemoteAddr)
	s.ring.Add("info", "manual update trigger from "+r.RemoteAddr)

	s.startUpdate("manual trigger")
	s.respond(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "update started",
	})
}

// startUpdate launches the unattended update in the background; the HTTP
// caller gets 202 immediately rather than waiting out the whole update.
// The update deliberately does not inherit the listener's context: once
// accepted it runs to completion, and ListenAndServe drains it on
// shutdown instead of cancelling it mid-stage.
func (s *Server) startUpdate(source string) {
	s.updates.Add(1)
	go func() {
		defer s.updates.Done()
		result, err := s.trigger.UpdateToLatest(context.Background(), update.SinkFunc(func(e update.Event) {
			s.ring.Add("info", e.Message)
		}))
		switch {
		case err != nil:
			s.logger.Warn("Triggered update did not run", "source", source, "error", err)
			s.ring.Add("error", fmt.Sprintf("%s update: %v", source, err))
		case result.Outcome == update.OutcomeSucceeded:
			s.logger.Info("Triggered update completed", "source", source, "summary", result.Summary)
			s.ring.Add("success", result.Summary)
		default:
			s.logger.Error("Triggered update failed", "source", source, "summary", result.Summary)
			s.ring.Add("error", result.Summary)
		}
	}()
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Could not write response", "error", err)
	}
}

// verifySignature checks an X-Hub-Signature-256 header against the HMAC
// SHA-256 of the raw body under the shared secret, in constant time.
func verifySignature(body []byte, header, secret string) bool {
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	received := strings.TrimPrefix(header, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(received), []byte(expected))
}
