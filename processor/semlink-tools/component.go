// Package semlinktools serves the semlink tools over JetStream. Each tool
// gets a durable consumer on tool.execute.<name>; results are published
// to tool.result.<call_id>.
package semlinktools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/c360studio/semstreams/pkg/worker"
	agentictools "github.com/c360studio/semstreams/processor/agentic-tools"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	providerName      = "semlink"
	toolExecutePrefix = "tool.execute."
	toolResultPrefix  = "tool.result."
)

// Component consumes tool calls and publishes their results.
type Component struct {
	config     Config
	executor   agentictools.ToolExecutor
	natsClient *natsclient.Client
	logger     *slog.Logger
	metrics    *metric.MetricsRegistry

	pool *worker.Pool[jetstream.Msg]

	running   bool
	startTime time.Time
	mu        sync.RWMutex

	requestsProcessed int64
	errors            int64
	lastActivity      time.Time

	consumers   map[string]jetstream.ConsumeContext
	cancelFuncs []context.CancelFunc
}

// Option configures a Component.
type Option func(*Component)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Component) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics registers the dispatch pool metrics.
func WithMetrics(reg *metric.MetricsRegistry) Option {
	return func(c *Component) { c.metrics = reg }
}

// NewComponent creates a tool worker over executor.
func NewComponent(config Config, executor agentictools.ToolExecutor, nc *natsclient.Client, opts ...Option) (*Component, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if executor == nil {
		return nil, fmt.Errorf("tool executor required")
	}
	c := &Component{
		config:     config,
		executor:   executor,
		natsClient: nc,
		logger:     slog.Default(),
		consumers:  make(map[string]jetstream.ConsumeContext),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start ensures the stream, starts the dispatch pool and subscribes one
// consumer per tool.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		return fmt.Errorf("NATS client required")
	}

	if err := c.ensureStream(ctx); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}

	workers := c.config.Workers
	if workers == 0 {
		workers = DefaultConfig().Workers
	}
	queueSize := c.config.QueueSize
	if queueSize == 0 {
		queueSize = DefaultConfig().QueueSize
	}
	var poolOpts []worker.Option[jetstream.Msg]
	if c.metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[jetstream.Msg](c.metrics, "semlink_tools"))
	}
	pool := worker.NewPool(workers, queueSize, c.processToolCall, poolOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancelFuncs = append(c.cancelFuncs, cancel)
	if err := pool.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start worker pool: %w", err)
	}
	c.pool = pool

	if err := c.subscribeToToolCalls(ctx); err != nil {
		_ = c.shutdown(5 * time.Second)
		return err
	}

	if err := c.advertiseTools(ctx); err != nil {
		c.logger.Warn("Failed to advertise tools", "error", err)
	}

	c.startHeartbeat(runCtx)

	c.running = true
	c.startTime = time.Now()

	c.logger.Info("Semlink tools started",
		"stream", c.config.StreamName,
		"tools", len(c.tools()))

	return nil
}

// tools returns the served tool definitions after the allowlist.
func (c *Component) tools() []agentic.ToolDefinition {
	var out []agentic.ToolDefinition
	for _, tool := range c.executor.ListTools() {
		if c.config.allowed(tool.Name) {
			out = append(out, tool)
		}
	}
	return out
}

// ensureStream creates the stream if it is missing.
func (c *Component) ensureStream(ctx context.Context) error {
	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream: %w", err)
	}
	if _, err := js.Stream(ctx, c.config.StreamName); err == nil {
		return nil
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     c.config.StreamName,
		Subjects: []string{toolExecutePrefix + ">", toolResultPrefix + ">"},
		Storage:  jetstream.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", c.config.StreamName, err)
	}
	c.logger.Info("Created tool stream", "stream", c.config.StreamName)
	return nil
}

// subscribeToToolCalls creates a dedicated consumer per tool
func (c *Component) subscribeToToolCalls(ctx context.Context) error {
	js, err := c.natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream: %w", err)
	}

	tools := c.tools()
	for _, tool := range tools {
		consumerName := consumerNameForTool(tool.Name)
		if c.config.ConsumerNameSuffix != "" {
			consumerName = consumerName + "-" + c.config.ConsumerNameSuffix
		}
		subject := toolExecutePrefix + tool.Name

		consumer, err := js.CreateOrUpdateConsumer(ctx, c.config.StreamName, jetstream.ConsumerConfig{
			Name:          consumerName,
			Durable:       consumerName,
			FilterSubject: subject,
			DeliverPolicy: jetstream.DeliverNewPolicy,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       c.config.timeout() + 5*time.Second,
			MaxDeliver:    3,
		})
		if err != nil {
			return fmt.Errorf("create consumer for %s: %w", tool.Name, err)
		}

		consumeCtx, err := consumer.Consume(c.dispatch)
		if err != nil {
			return fmt.Errorf("start consuming %s: %w", tool.Name, err)
		}
		c.consumers[tool.Name] = consumeCtx

		c.logger.Debug("Created consumer for tool",
			"tool", tool.Name,
			"consumer", consumerName,
			"subject", subject)
	}

	c.logger.Info("Subscribed to tool calls",
		"stream", c.config.StreamName,
		"tools", len(tools))
	return nil
}

// dispatch hands a message to the pool. A full queue is redelivered later.
func (c *Component) dispatch(msg jetstream.Msg) {
	if err := c.pool.Submit(msg); err != nil {
		c.logger.Warn("Tool call not queued, will retry",
			"subject", msg.Subject(),
			"error", err)
		_ = msg.NakWithDelay(time.Second)
	}
}

// consumerNameForTool converts tool name to valid NATS consumer name
func consumerNameForTool(toolName string) string {
	sanitized := strings.ReplaceAll(toolName, ".", "-")
	sanitized = strings.ReplaceAll(sanitized, "_", "-")
	return "semlink-tool-" + sanitized
}

// processToolCall runs one tool call. Malformed calls and execution
// errors are terminated; publish failures are redelivered.
func (c *Component) processToolCall(_ context.Context, msg jetstream.Msg) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.timeout())
	defer cancel()

	var call agentic.ToolCall
	if err := json.Unmarshal(msg.Data(), &call); err != nil {
		c.logger.Error("Failed to unmarshal tool call",
			"error", err,
			"subject", msg.Subject())
		_ = msg.Term()
		c.incrementErrors()
		return err
	}

	start := time.Now()
	result, err := c.execute(ctx, call)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Tool execution failed",
			"tool", call.Name,
			"call_id", call.ID,
			"error", err,
			"duration", duration)
		_ = msg.Term()
		c.incrementErrors()
		return err
	}

	if result.Error != "" {
		c.logger.Debug("Tool returned error",
			"tool", call.Name,
			"call_id", call.ID,
			"error", result.Error,
			"duration", duration)
	}

	if err := c.publishResult(ctx, result); err != nil {
		if retry.IsNonRetryable(err) {
			c.logger.Error("Fatal error publishing result", "call_id", call.ID, "error", err)
			_ = msg.Term()
		} else {
			c.logger.Warn("Error publishing result, will retry", "call_id", call.ID, "error", err)
			_ = msg.Nak()
		}
		c.incrementErrors()
		return err
	}

	if err := msg.Ack(); err != nil {
		c.logger.Error("Failed to ack message", "error", err)
	}

	c.mu.Lock()
	c.requestsProcessed++
	c.lastActivity = time.Now()
	c.mu.Unlock()
	return nil
}

// execute runs the call unless the tool is outside the allowlist.
func (c *Component) execute(ctx context.Context, call agentic.ToolCall) (agentic.ToolResult, error) {
	if !c.config.allowed(call.Name) {
		return agentic.ToolResult{CallID: call.ID, Error: fmt.Sprintf("tool not allowed: %s", call.Name)}, nil
	}
	if call.ID == "" {
		return agentic.ToolResult{}, fmt.Errorf("tool call %s has no id", call.Name)
	}
	return c.executor.Execute(ctx, call)
}

// publishResult publishes a tool result to JetStream
func (c *Component) publishResult(ctx context.Context, result agentic.ToolResult) error {
	if result.CallID == "" {
		return retry.NonRetryable(errors.New("empty call ID in result"))
	}

	data, err := json.Marshal(result)
	if err != nil {
		return retry.NonRetryable(fmt.Errorf("marshal result: %w", err))
	}

	subject := toolResultPrefix + result.CallID
	if err := c.natsClient.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// ExternalToolRegistration wraps tool definition for external registration
type ExternalToolRegistration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Provider    string         `json:"provider"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ToolHeartbeat signals tool provider is alive
type ToolHeartbeat struct {
	Provider  string    `json:"provider"`
	Tools     []string  `json:"tools"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolUnregister signals tool removal
type ToolUnregister struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// advertiseTools publishes tool registrations
func (c *Component) advertiseTools(ctx context.Context) error {
	for _, tool := range c.tools() {
		data, err := json.Marshal(ExternalToolRegistration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
			Provider:    providerName,
			Timestamp:   time.Now(),
		})
		if err != nil {
			return fmt.Errorf("marshal registration: %w", err)
		}
		if err := c.natsClient.Publish(ctx, "tool.register."+tool.Name, data); err != nil {
			return fmt.Errorf("publish %s: %w", tool.Name, err)
		}
	}
	return nil
}

// startHeartbeat runs periodic heartbeat in background
func (c *Component) startHeartbeat(ctx context.Context) {
	interval := c.config.heartbeatInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.sendHeartbeat(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sendHeartbeat(ctx)
			}
		}
	}()
}

func (c *Component) sendHeartbeat(ctx context.Context) {
	tools := c.tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}

	data, err := json.Marshal(ToolHeartbeat{
		Provider:  providerName,
		Tools:     names,
		Timestamp: time.Now(),
	})
	if err != nil {
		c.logger.Error("Failed to marshal heartbeat", "error", err)
		return
	}

	if err := c.natsClient.Publish(ctx, "tool.heartbeat."+providerName, data); err != nil {
		c.logger.Warn("Failed to send heartbeat", "error", err)
	}
}

// unregisterTools sends unregister messages for all tools
func (c *Component) unregisterTools(ctx context.Context) {
	for _, tool := range c.tools() {
		data, err := json.Marshal(ToolUnregister{Name: tool.Name, Provider: providerName})
		if err != nil {
			continue
		}
		_ = c.natsClient.Publish(ctx, "tool.unregister."+tool.Name, data)
	}
}

func (c *Component) incrementErrors() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Stats reports processed and failed calls plus the pool counters.
type Stats struct {
	Running           bool              `json:"running"`
	RequestsProcessed int64             `json:"requests_processed"`
	Errors            int64             `json:"errors"`
	LastActivity      time.Time         `json:"last_activity"`
	Uptime            time.Duration     `json:"uptime"`
	Pool              *worker.PoolStats `json:"pool,omitempty"`
}

// Stats returns a snapshot of the worker counters.
func (c *Component) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Running:           c.running,
		RequestsProcessed: c.requestsProcessed,
		Errors:            c.errors,
		LastActivity:      c.lastActivity,
	}
	if c.running {
		s.Uptime = time.Since(c.startTime)
	}
	if c.pool != nil {
		ps := c.pool.Stats()
		s.Pool = &ps
	}
	return s
}

// Stop unregisters the tools, stops consuming and drains the pool.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c.unregisterTools(ctx)

	err := c.shutdown(timeout)

	stats := c.Stats()
	c.logger.Info("Semlink tools stopped",
		"requests_processed", stats.RequestsProcessed,
		"errors", stats.Errors)
	return err
}

// shutdown stops the consumers, waits for in-flight calls and cancels
// the background goroutines.
func (c *Component) shutdown(timeout time.Duration) error {
	for name, consumeCtx := range c.consumers {
		consumeCtx.Stop()
		c.logger.Debug("Stopped consumer", "tool", name)
	}
	c.consumers = make(map[string]jetstream.ConsumeContext)

	var err error
	if c.pool != nil {
		err = c.pool.Stop(timeout)
	}

	for _, cancel := range c.cancelFuncs {
		cancel()
	}
	c.cancelFuncs = nil
	return err
}
