package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/scheduler"
)

// Cache is the subscription store as seen by the API.
type Cache interface {
	ClashConfig(ctx context.Context) ([]byte, error)
	UserInfo(ctx context.Context) (string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Invalidate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Jobs is the part of the scheduler the API drives.
type Jobs interface {
	Jobs() []string
	Trigger(name string) error
	Status() []scheduler.Status
}

type Deps struct {
	Logger     logger.Logger
	StartTime  time.Time
	Version    string
	Commit     string
	BuildDate  string
	GoVersion  string
	TimeNow    func() time.Time // for testing, defaults to time.Now
	AdminToken string           // shared secret for /reload and /subscription (empty = open)
	AdminCIDRs []string         // IPs allowed on the admin routes (empty = all)
	TrustProxy bool             // true if running behind a trusted reverse proxy
	Cache      Cache            // cached subscription artifacts
	Jobs       Jobs             // scheduled jobs
	Metrics    http.Handler     // prometheus exposition, defaults to promhttp.Handler()
}

func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
