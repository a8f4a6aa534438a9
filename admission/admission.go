/*
Package admission は、リモートのピアに接続や送信の継続を許可するかどうかを判定するパッケージです。

サーバーはハンドシェイク時と、接続中は一定間隔で Gate に問い合わせます。
*/
package admission

import (
	"net/netip"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// サーバーが Gate.ShouldLimit に渡すラベルです。
const (
	LabelConnect = "connect"
	LabelMessage = "message"
)

// Gate は、 ip からのコスト cost の操作を拒否するかどうかを返却します。
//
// 実装は並行に呼び出されても安全である必要があります。
type Gate interface {
	ShouldLimit(ip netip.Addr, cost int, label string, now time.Time) bool
}

// GateFunc は、関数を Gate として扱うためのアダプタです。
type GateFunc func(ip netip.Addr, cost int, label string, now time.Time) bool

func (f GateFunc) ShouldLimit(ip netip.Addr, cost int, label string, now time.Time) bool {
	return f(ip, cost, label, now)
}

// Allow は、何も制限しない Gate です。
var Allow Gate = GateFunc(func(netip.Addr, int, string, time.Time) bool { return false })

/*
LimiterConfig のデフォルト値は以下のように定義されています。
*/
const (
	DefaultInterval = 10 * time.Second
	DefaultBurst    = 16
	DefaultSize     = 1 << 16
)

// LimiterConfig は、 Limiter の設定です。ゼロ値の項目にはデフォルト値が使用されます。
type LimiterConfig struct {
	// Interval は、許容量が 1 回復するまでの時間です。
	Interval time.Duration
	// Burst は、しばらく操作のなかったIPの許容量です。
	Burst int
	// Size は、記録するIPの数の上限です。上限を超えると最も古いIPを破棄します。
	Size int
	// AllowLoopback が `true` の場合、ループバックアドレスは制限しません。
	AllowLoopback bool
}

// Limiter は、IPとラベルごとにトークンバケットを持つ Gate です。
type Limiter struct {
	mu            sync.Mutex
	buckets       *lru.Cache[bucketKey, *rate.Limiter]
	limit         rate.Limit
	burst         int
	allowLoopback bool
}

type bucketKey struct {
	ip    netip.Addr
	label string
}

// NewLimiter は、 Limiter を生成します。
func NewLimiter(c LimiterConfig) (*Limiter, error) {
	interval := c.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	burst := c.Burst
	if burst == 0 {
		burst = DefaultBurst
	}
	size := c.Size
	if size == 0 {
		size = DefaultSize
	}
	buckets, err := lru.New[bucketKey, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		buckets:       buckets,
		limit:         rate.Every(interval),
		burst:         burst,
		allowLoopback: c.AllowLoopback,
	}, nil
}

func (l *Limiter) ShouldLimit(ip netip.Addr, cost int, label string, now time.Time) bool {
	ip = ip.Unmap()
	if l.allowLoopback && ip.IsLoopback() {
		return false
	}
	if cost <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	key := bucketKey{ip: ip, label: label}
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(key, b)
	}
	return !b.AllowN(now, cost)
}

// Len は、記録しているバケットの数を返却します。
func (l *Limiter) Len() int {
	return l.buckets.Len()
}

// ByLabel は、ラベルごとに登録した Gate へ問い合わせを振り分ける Gate です。
//
// Gate が登録されていないラベルは制限しません。
type ByLabel map[string]Gate

func (g ByLabel) ShouldLimit(ip netip.Addr, cost int, label string, now time.Time) bool {
	gate, ok := g[label]
	if !ok || gate == nil {
		return false
	}
	return gate.ShouldLimit(ip, cost, label, now)
}
