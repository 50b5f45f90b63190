package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrSnakeDoc/esched/internal/httpclient"
	"github.com/MrSnakeDoc/esched/internal/logger"
)

type robot struct {
	calls   atomic.Int32
	content atomic.Value
	status  int
	reply   string
}

func (rb *robot) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rb.calls.Add(1)
		var msg message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("robot got invalid json: %v", err)
		}
		if msg.MsgType != "markdown" {
			t.Errorf("msgtype = %q, want markdown", msg.MsgType)
		}
		rb.content.Store(msg.Markdown.Content)
		if rb.status != 0 {
			w.WriteHeader(rb.status)
		}
		_, _ = w.Write([]byte(rb.reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newNotifier(t *testing.T, webhook string) *Notifier {
	t.Helper()
	client, err := httpclient.New(httpclient.Options{}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(client.Close)
	return New(client, webhook, "test", logger.Nop())
}

func TestNotify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		reply   string
		wantErr bool
	}{
		{"accepted", 0, `{"errcode":0,"errmsg":"ok"}`, false},
		{"robot rejects", 0, `{"errcode":93000,"errmsg":"invalid webhook url"}`, true},
		{"http error", http.StatusInternalServerError, `{"errcode":0}`, true},
		{"not json", 0, `<html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := &robot{status: tt.status, reply: tt.reply}
			n := newNotifier(t, rb.server(t).URL)

			err := n.Notify(context.Background(), "boom")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Notify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrDeliveryFailed) {
				t.Errorf("error %v does not wrap ErrDeliveryFailed", err)
			}
			if got := rb.content.Load().(string); got != "# [test] e-schedule 告警\n\n\nboom" {
				t.Errorf("content = %q", got)
			}
		})
	}
}

func TestNotifyWithoutWebhookOnlyLogs(t *testing.T) {
	n := newNotifier(t, "")
	if err := n.Notify(context.Background(), "boom"); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}

func TestGuardAlertsOnceAndReturnsError(t *testing.T) {
	rb := &robot{reply: `{"errcode":0}`}
	n := newNotifier(t, rb.server(t).URL)

	want := errors.New("upstream down")
	err := n.Guard(context.Background(), "subscription", func(context.Context) error { return want })

	if !errors.Is(err, want) {
		t.Errorf("Guard() error = %v, want %v", err, want)
	}
	if rb.calls.Load() != 1 {
		t.Errorf("robot calls = %d, want 1", rb.calls.Load())
	}
	if got := rb.content.Load().(string); !strings.Contains(got, "subscription") || !strings.Contains(got, "upstream down") {
		t.Errorf("alert content = %q", got)
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	rb := &robot{reply: `{"errcode":0}`}
	n := newNotifier(t, rb.server(t).URL)

	err := n.Guard(context.Background(), "checkin", func(context.Context) error { panic("nil map") })

	if err == nil || !strings.Contains(err.Error(), "nil map") {
		t.Errorf("Guard() error = %v, want recovered panic", err)
	}
	if rb.calls.Load() != 1 {
		t.Errorf("robot calls = %d, want 1", rb.calls.Load())
	}
}

func TestGuardSuccessSendsNothing(t *testing.T) {
	rb := &robot{reply: `{"errcode":0}`}
	n := newNotifier(t, rb.server(t).URL)

	if err := n.Guard(context.Background(), "template", func(context.Context) error { return nil }); err != nil {
		t.Errorf("Guard() error = %v", err)
	}
	if rb.calls.Load() != 0 {
		t.Errorf("robot calls = %d, want 0", rb.calls.Load())
	}
}

func TestGuardSkipsAlertOnCancellation(t *testing.T) {
	rb := &robot{reply: `{"errcode":0}`}
	n := newNotifier(t, rb.server(t).URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Guard(ctx, "subscription", func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Guard() error = %v", err)
	}
	if rb.calls.Load() != 0 {
		t.Errorf("robot calls = %d, want 0 for a cancelled run", rb.calls.Load())
	}
}

func TestGuardSurvivesRobotFailure(t *testing.T) {
	rb := &robot{status: http.StatusBadGateway}
	n := newNotifier(t, rb.server(t).URL)

	want := errors.New("x")
	if err := n.Guard(context.Background(), "subscription", func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("Guard() error = %v, want the job error", err)
	}
}
