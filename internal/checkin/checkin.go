// Package checkin performs the daily airport check-in: a form login followed
// by a check-in call that reuses the login cookies.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/esched/internal/httpclient"
	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/retry"
)

// ErrUpstreamRejected is returned when the airport answers but refuses the call.
var ErrUpstreamRejected = errors.New("upstream rejected")

// AlreadyCheckedIn is the message the airport returns on a second check-in
// the same day. It counts as success.
const AlreadyCheckedIn = "您似乎已经签到过了..."

var (
	LoginPolicy   = retry.Policy{Name: "checkin.login", Attempts: 3}
	CheckinPolicy = retry.Policy{Name: "checkin.checkin", Attempts: 3, Delay: 30 * time.Second, Step: 30 * time.Second}
)

// Poster is the part of the HTTP client the check-in needs.
type Poster interface {
	Post(ctx context.Context, url string, opts ...httpclient.Option) (*httpclient.Response, error)
}

type Account struct {
	Airport  string // base URL, no trailing slash
	Email    string
	Password string
}

type Checker struct {
	client        Poster
	retrier       *retry.Retrier
	account       Account
	logger        logger.Logger
	loginPolicy   retry.Policy
	checkinPolicy retry.Policy
}

func New(client Poster, retrier *retry.Retrier, account Account, log logger.Logger) *Checker {
	return &Checker{
		client:        client,
		retrier:       retrier,
		account:       account,
		logger:        log.With(logger.String("email", account.Email)),
		loginPolicy:   LoginPolicy,
		checkinPolicy: CheckinPolicy,
	}
}

type reply struct {
	Ret int    `json:"ret"`
	Msg string `json:"msg"`
}

// Run logs in and checks in. It is the job body of the daily check-in.
func (c *Checker) Run(ctx context.Context) error {
	cookies, err := retry.Do(ctx, c.retrier, c.loginPolicy, c.login)
	if err != nil {
		return err
	}
	return retry.Run(ctx, c.retrier, c.checkinPolicy, func(ctx context.Context) error {
		return c.checkin(ctx, cookies)
	})
}

func (c *Checker) login(ctx context.Context) ([]*http.Cookie, error) {
	resp, err := c.client.Post(ctx, c.account.Airport+"/auth/login", httpclient.WithForm(map[string]string{
		"email":  c.account.Email,
		"passwd": c.account.Password,
		"code":   "",
	}))
	if err != nil {
		return nil, err
	}

	var r reply
	if err := resp.JSON(&r); err != nil {
		return nil, err
	}
	if r.Ret != 1 {
		c.logger.Error("airport login failed", logger.String("msg", r.Msg))
		return nil, fmt.Errorf("%w: airport login failed: %s", ErrUpstreamRejected, describe(r, resp))
	}

	c.logger.Info("airport login success")
	return resp.Cookies, nil
}

func (c *Checker) checkin(ctx context.Context, cookies []*http.Cookie) error {
	resp, err := c.client.Post(ctx, c.account.Airport+"/user/checkin", httpclient.WithCookies(cookies))
	if err != nil {
		return err
	}

	var r reply
	if err := resp.JSON(&r); err != nil {
		return err
	}
	if r.Ret != 1 && r.Msg != AlreadyCheckedIn {
		c.logger.Error("checkin failed", logger.String("msg", r.Msg))
		return fmt.Errorf("%w: checkin failed: %s", ErrUpstreamRejected, describe(r, resp))
	}

	c.logger.Info("checkin done", logger.String("msg", r.Msg))
	return nil
}

func describe(r reply, resp *httpclient.Response) string {
	if r.Msg != "" {
		return r.Msg
	}
	return resp.Text()
}
