package subscription

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/esched/internal/clash"
)

// ErrMissingGroup is returned when the template lacks a group an anchor names.
var ErrMissingGroup = errors.New("template group missing")

// Anchor binds a template group to the bucket whose names it receives.
type Anchor struct {
	Group  string
	Bucket Bucket
}

// DefaultAnchors wires the default template's placeholder groups.
var DefaultAnchors = []Anchor{
	{Group: clash.GroupManual, Bucket: BucketAll},
	{Group: clash.GroupFastLane, Bucket: BucketHighSpeed},
	{Group: clash.GroupAuto, Bucket: BucketAll},
	{Group: clash.GroupFallback, Bucket: BucketAll},
	{Group: clash.GroupLoadBalance, Bucket: BucketAll},
	{Group: clash.GroupHK, Bucket: BucketHK},
	{Group: clash.GroupTW, Bucket: BucketTW},
	{Group: clash.GroupUS, Bucket: BucketUS},
	{Group: clash.GroupJP, Bucket: BucketJP},
	{Group: clash.GroupKR, Bucket: BucketKR},
}

// Merge replaces cfg's proxies and appends each anchor's bucket to its group.
// Names are appended to whatever the group already holds, so merging twice
// into the same config duplicates them. Callers merge into a freshly loaded
// template. On error cfg is left untouched.
func Merge(cfg *clash.Config, proxies []clash.Proxy, buckets *Buckets, anchors []Anchor) error {
	missing := lo.Filter(anchors, func(a Anchor, _ int) bool {
		_, ok := cfg.Group(a.Group)
		return !ok
	})
	if len(missing) > 0 {
		names := lo.Map(missing, func(a Anchor, _ int) string { return a.Group })
		return fmt.Errorf("%w: %s", ErrMissingGroup, strings.Join(names, ", "))
	}

	cfg.Proxies = proxies
	for _, a := range anchors {
		g, _ := cfg.Group(a.Group)
		g.Proxies = append(g.Proxies, buckets.Names(a.Bucket)...)
	}
	return nil
}
