// Package proxy provides the browser-facing chat gateway that forwards
// conversations to the Anthropic Messages API with a server-side credential.
package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/cipherbob/pkg/llm"
	"github.com/papercomputeco/cipherbob/pkg/metrics"
)

const (
	// chatRouteToken must appear in the request URI for a POST to be served.
	chatRouteToken = "chat"

	allowMethods = "POST, OPTIONS"
	allowHeaders = "X-Requested-With, Content-Type"
)

// Proxy is the chat gateway. It holds no per-request state: every POST is
// validated, translated, sent upstream once, and relayed.
type Proxy struct {
	config     Config
	origins    map[string]struct{}
	logger     *zap.Logger
	httpClient *http.Client
	metrics    *metrics.Collector
	server     *fiber.App
	admin      *fiber.App
}

// New creates a new Proxy.
func New(config Config, logger *zap.Logger) (*Proxy, error) {
	if config.APIKey == "" {
		return nil, &Error{Kind: KindConfigurationMissing, Err: ErrMissingAPIKey}
	}

	origins := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		origins[o] = struct{}{}
	}
	// The set above is the only copy consulted at request time.
	config.AllowedOrigins = append([]string(nil), config.AllowedOrigins...)

	bodyLimit := config.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
	})

	p := &Proxy{
		config:  config,
		origins: origins,
		logger:  logger,
		metrics: metrics.NewCollector(),
		server:  app,
		httpClient: &http.Client{
			// Zero means the upstream call may block indefinitely
			Timeout: config.UpstreamTimeout,
		},
	}

	app.Use(recover.New())
	app.Options("/*", p.handlePreflight)
	app.Post("/*", p.handleChat)
	app.Use(p.handleNotFound)

	if config.MetricsListen != "" {
		p.admin = newAdminApp(p.metrics)
	}

	return p, nil
}

// Run binds the configured port with address reuse and serves until the
// listener fails or Close is called.
func (p *Proxy) Run() error {
	ln, err := listen(p.config.ListenAddr())
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", p.config.ListenAddr(), err)
	}

	return p.RunWithListener(ln)
}

// RunWithListener serves the gateway on an existing listener.
func (p *Proxy) RunWithListener(ln net.Listener) error {
	if p.admin != nil {
		go func() {
			p.logger.Info("starting metrics listener", zap.String("listen", p.config.MetricsListen))
			if err := p.admin.Listen(p.config.MetricsListen); err != nil {
				p.logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	p.logger.Info("starting gateway",
		zap.String("listen", ln.Addr().String()),
		zap.String("upstream", p.config.UpstreamURL),
		zap.String("model", p.config.Model),
	)

	return p.server.Listener(ln)
}

// Close stops the listeners without draining in-flight requests.
func (p *Proxy) Close() error {
	var errs []error
	if p.admin != nil {
		errs = append(errs, p.admin.Shutdown())
	}
	errs = append(errs, p.server.Shutdown())
	return errors.Join(errs...)
}

func (p *Proxy) allowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := p.origins[origin]
	return ok
}

// handlePreflight always answers 200. The allow-origin header is only
// echoed for known origins, which is what denies the browser's follow-up.
func (p *Proxy) handlePreflight(c *fiber.Ctx) error {
	origin := c.Get(fiber.HeaderOrigin)
	allowed := p.allowed(origin)

	if allowed {
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	}
	c.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)

	p.logger.Debug("preflight",
		zap.String("origin", origin),
		zap.Bool("allowed", allowed),
	)
	p.metrics.ObserveRequest(metrics.OutcomePreflight)

	c.Status(fiber.StatusOK)
	return nil
}

func (p *Proxy) handleNotFound(c *fiber.Ctx) error {
	p.logger.Info("incoming request",
		zap.String("method", c.Method()),
		zap.String("path", c.OriginalURL()),
	)
	return p.respondError(c, &Error{Kind: KindRouteNotFound}, p.logger)
}

// handleChat validates the caller, forwards the conversation upstream and
// relays the answer. Every failure is converted to a response here.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()
	log := p.logger.With(zap.String("request_id", uuid.NewString()))

	log.Info("incoming request",
		zap.String("method", c.Method()),
		zap.String("path", c.OriginalURL()),
	)

	origin := c.Get(fiber.HeaderOrigin)
	if !p.allowed(origin) {
		log.Warn("security block: unauthorized origin", zap.String("origin", origin))
		return p.respondError(c, &Error{Kind: KindUnauthorizedOrigin}, log)
	}

	if !strings.Contains(c.OriginalURL(), chatRouteToken) {
		return p.respondError(c, &Error{Kind: KindRouteNotFound}, log)
	}

	body, err := p.forward(c, log)
	if err != nil {
		return p.respondError(c, err, log)
	}

	log.Info("response relayed",
		zap.String("origin", origin),
		zap.Int("body_size", len(body)),
		zap.Duration("duration", time.Since(startTime)),
	)
	p.metrics.ObserveRequest(metrics.OutcomeOK)

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	return c.Status(fiber.StatusOK).Send(body)
}

// forward runs the translate, call, and inspect steps and returns the raw
// upstream body on success.
func (p *Proxy) forward(c *fiber.Ctx, log *zap.Logger) ([]byte, error) {
	chat, err := llm.ParseChatRequest(c.Body())
	if err != nil {
		return nil, err
	}

	req, err := llm.NewMessagesRequest(p.config.Model, p.config.MaxTokens, chat)
	if err != nil {
		return nil, err
	}

	log.Info("calling upstream", zap.String("model", req.Model))

	body, err := p.callUpstream(c, req, log)
	if err != nil {
		return nil, err
	}

	if llm.HasErrorMarker(body) {
		return nil, &Error{
			Kind: KindUpstreamReportedError,
			Err:  errors.New("upstream returned an error payload"),
			Body: body,
		}
	}

	return body, nil
}

// callUpstream sends one request to the Messages API. The upstream status
// code is deliberately ignored: only the body decides success.
func (p *Proxy) callUpstream(c *fiber.Ctx, req *llm.MessagesRequest, log *zap.Logger) ([]byte, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(c.UserContext(), http.MethodPost, p.config.UpstreamURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", p.config.AnthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	log.Debug("forwarding request to upstream",
		zap.String("url", p.config.UpstreamURL),
		zap.Int("body_size", len(reqBody)),
	)

	start := time.Now()
	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindUpstreamUnavailable, Err: fmt.Errorf("do request: %w", err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	p.metrics.ObserveUpstream(time.Since(start))
	if err != nil {
		return nil, &Error{Kind: KindUpstreamUnavailable, Err: fmt.Errorf("read response: %w", err)}
	}

	log.Debug("received response from upstream",
		zap.Int("status", httpResp.StatusCode),
		zap.Int("body_size", len(body)),
	)

	return body, nil
}

// respondError writes a failure. No CORS header is ever attached, so the
// browser will not expose the body to the calling page.
func (p *Proxy) respondError(c *fiber.Ctx, err error, log *zap.Logger) error {
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		gwErr = &Error{Kind: KindMalformedRequest, Err: err}
	}

	switch gwErr.Kind {
	case KindUpstreamReportedError:
		log.Error("upstream reported error", zap.String("body", truncate(string(gwErr.Body), 500)))
	case KindUpstreamUnavailable, KindMalformedRequest:
		log.Error("request failed", zap.Stringer("kind", gwErr.Kind), zap.Error(gwErr.Err))
	}
	p.metrics.ObserveRequest(gwErr.outcome())

	c.Status(gwErr.Status())
	if body := gwErr.ResponseBody(); len(body) > 0 {
		return c.Send(body)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
