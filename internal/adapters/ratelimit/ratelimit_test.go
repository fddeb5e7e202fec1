package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/bookfinder/internal/adapters/ratelimit"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryLimiter(t *testing.T) {
	Convey("Given a memory limiter", t, func() {
		ctx := context.Background()
		l := ratelimit.NewMemory()
		Reset(func() { _ = l.Close() })

		Convey("When a client spends its budget", func() {
			var last ratelimit.Decision
			for range 3 {
				d, err := l.Allow(ctx, "search:1.2.3.4", 3, time.Minute)
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
				last = d
			}
			So(last.Remaining, ShouldEqual, 0)

			Convey("Then the next request should be denied with a retry hint", func() {
				d, err := l.Allow(ctx, "search:1.2.3.4", 3, time.Minute)
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeFalse)
				So(d.Limit, ShouldEqual, 3)
				So(d.RetryAfter, ShouldBeGreaterThan, 0)
				So(d.RetryAfter, ShouldBeLessThanOrEqualTo, 20*time.Second)
			})

			Convey("Then other clients should be unaffected", func() {
				d, err := l.Allow(ctx, "search:5.6.7.8", 3, time.Minute)
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
				So(d.Remaining, ShouldEqual, 2)
				So(l.Len(), ShouldEqual, 2)
			})
		})

		Convey("When the limit is not positive", func() {
			_, err := l.Allow(ctx, "k", 0, time.Minute)
			So(err, ShouldEqual, ratelimit.ErrInvalidLimit)
		})
	})
}

func TestRedisLimiter(t *testing.T) {
	Convey("Given a redis limiter with a fixed clock", t, func() {
		ctx := context.Background()
		srv := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		Reset(func() { _ = client.Close() })

		now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
		l := ratelimit.NewRedis(client, ratelimit.WithRedisClock(func() time.Time { return now }))

		Convey("When the window budget is exhausted", func() {
			for i := range 2 {
				d, err := l.Allow(ctx, "genres:10.0.0.1", 2, time.Minute)
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
				So(d.Remaining, ShouldEqual, 1-i)
			}
			d, err := l.Allow(ctx, "genres:10.0.0.1", 2, time.Minute)
			So(err, ShouldBeNil)

			Convey("Then it should deny until the window ends", func() {
				So(d.Allowed, ShouldBeFalse)
				So(d.RetryAfter, ShouldEqual, 50*time.Second)
			})

			Convey("Then the next window should start fresh", func() {
				now = now.Add(time.Minute)
				d, err := l.Allow(ctx, "genres:10.0.0.1", 2, time.Minute)
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
			})

			Convey("Then the counter key should carry an expiry", func() {
				keys := srv.Keys()
				So(len(keys), ShouldEqual, 1)
				So(srv.TTL(keys[0]), ShouldEqual, time.Minute)
			})
		})

		Convey("When redis is down", func() {
			srv.Close()
			_, err := l.Allow(ctx, "k", 1, time.Minute)
			So(err, ShouldNotBeNil)
		})
	})
}
