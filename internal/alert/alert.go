// Package alert reports failed job runs to a WeCom group robot.
package alert

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/MrSnakeDoc/esched/internal/httpclient"
	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/metrics"
)

const markdownTemplate = "# [%s] e-schedule 告警\n\n\n%s"

// ErrDeliveryFailed is returned by Notify when the robot did not accept the message.
var ErrDeliveryFailed = errors.New("alert delivery failed")

// Poster is the part of the HTTP client the notifier needs.
type Poster interface {
	Post(ctx context.Context, url string, opts ...httpclient.Option) (*httpclient.Response, error)
}

// Notifier posts markdown alerts. An empty webhook disables delivery and
// alerts are only logged.
type Notifier struct {
	client  Poster
	webhook string
	mode    string
	logger  logger.Logger
}

// New creates a Notifier that posts to webhook.
func New(client Poster, webhook, mode string, log logger.Logger) *Notifier {
	return &Notifier{
		client:  client,
		webhook: webhook,
		mode:    mode,
		logger:  log,
	}
}

type markdown struct {
	Content string `json:"content"`
}

type message struct {
	MsgType  string   `json:"msgtype"`
	Markdown markdown `json:"markdown"`
}

type robotReply struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Notify sends one alert. Delivery problems are returned, never panicked.
func (n *Notifier) Notify(ctx context.Context, msg string) error {
	if n.webhook == "" {
		n.logger.Warn("alert webhook not configured, alert dropped", logger.String("msg", msg))
		metrics.AlertsTotal.WithLabelValues("dropped").Inc()
		return nil
	}

	resp, err := n.client.Post(ctx, n.webhook, httpclient.WithJSON(message{
		MsgType:  "markdown",
		Markdown: markdown{Content: fmt.Sprintf(markdownTemplate, n.mode, msg)},
	}))
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if resp.StatusCode != 200 {
		metrics.AlertsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	var reply robotReply
	if err := resp.JSON(&reply); err != nil {
		metrics.AlertsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if reply.ErrCode != 0 {
		metrics.AlertsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("%w: errcode %d %s", ErrDeliveryFailed, reply.ErrCode, reply.ErrMsg)
	}

	metrics.AlertsTotal.WithLabelValues("sent").Inc()
	return nil
}

// Guard runs fn as the failure boundary of a job. A returned error or a panic
// is logged and alerted exactly once, then handed back for bookkeeping so the
// caller never has to propagate it. Runs cut short by ctx cancellation are
// not alerted.
func (n *Notifier) Guard(ctx context.Context, job string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", job, r)
			n.logger.Error("job panicked",
				logger.String("job", job),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			n.alert(ctx, job, err)
		}
	}()

	err = fn(ctx)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		n.logger.Info("job cancelled", logger.String("job", job), logger.Error(err))
		return err
	}

	n.logger.Error("job failed", logger.String("job", job), logger.Error(err))
	n.alert(ctx, job, err)
	return err
}

func (n *Notifier) alert(ctx context.Context, job string, err error) {
	msg := fmt.Sprintf("**%s**\n\n%s", job, err)
	if sendErr := n.Notify(context.WithoutCancel(ctx), msg); sendErr != nil {
		n.logger.Error("wecom robot fail",
			logger.String("job", job),
			logger.String("msg", msg),
			logger.Error(sendErr))
	}
}
