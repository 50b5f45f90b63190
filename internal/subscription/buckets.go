package subscription

import (
	"github.com/MrSnakeDoc/esched/internal/clash"
	"github.com/MrSnakeDoc/esched/internal/classify"
	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/metrics"
)

// Bucket names a list of node names that feeds one or more template groups.
type Bucket string

const (
	BucketAll       Bucket = "all"
	BucketHighSpeed Bucket = "high-speed"
	BucketHK        Bucket = "hk"
	BucketTW        Bucket = "tw"
	BucketUS        Bucket = "us"
	BucketJP        Bucket = "jp"
	BucketKR        Bucket = "kr"
)

// AllBuckets lists every bucket in report order.
var AllBuckets = []Bucket{BucketAll, BucketHighSpeed, BucketHK, BucketTW, BucketUS, BucketJP, BucketKR}

// regionBuckets maps the regions that have a dedicated group. Other regions
// only land in BucketAll.
var regionBuckets = map[classify.Code]Bucket{
	classify.HK: BucketHK,
	classify.TW: BucketTW,
	classify.US: BucketUS,
	classify.JP: BucketJP,
	classify.KR: BucketKR,
}

// Buckets holds the renamed node names of one refresh, in upstream order.
type Buckets struct {
	names        map[Bucket][]string
	unrecognized []string
}

func newBuckets() *Buckets {
	return &Buckets{names: make(map[Bucket][]string, len(AllBuckets))}
}

// Names returns the node names in bucket.
func (b *Buckets) Names(bucket Bucket) []string {
	return b.names[bucket]
}

// Unrecognized returns the original labels no rule matched.
func (b *Buckets) Unrecognized() []string {
	return b.unrecognized
}

func (b *Buckets) add(r classify.Result) {
	b.names[BucketAll] = append(b.names[BucketAll], r.Name)
	if r.HighSpeed {
		b.names[BucketHighSpeed] = append(b.names[BucketHighSpeed], r.Name)
	}
	if bucket, ok := regionBuckets[r.Code]; ok {
		b.names[bucket] = append(b.names[bucket], r.Name)
	}
}

// Classify renames every recognised proxy in place and sorts its new name
// into buckets. Unrecognised proxies keep their name, stay in proxies and are
// left out of every bucket.
func Classify(proxies []clash.Proxy, c *classify.Classifier, log logger.Logger) *Buckets {
	b := newBuckets()
	for i := range proxies {
		label := proxies[i].Name()
		r, err := c.Classify(label)
		if err != nil {
			log.Warn("skipping proxy", logger.Error(err))
			metrics.UnrecognizedNodesTotal.Inc()
			b.unrecognized = append(b.unrecognized, label)
			continue
		}
		proxies[i].SetName(r.Name)
		b.add(r)
	}

	for _, bucket := range AllBuckets {
		metrics.BucketNodes.WithLabelValues(string(bucket)).Set(float64(len(b.names[bucket])))
	}
	return b
}
