package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/events"
	"github.com/okian/pulse/internal/adapters/repository"
	app "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	convey.Convey("Given PULSE_ environment overrides", t, func() {
		t.Setenv("PULSE_ADDR", ":8080")
		t.Setenv("PULSE_QUEUE_SIZE", "1000")
		t.Setenv("PULSE_WORKER_COUNT", "4")

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
		})
	})

	convey.Convey("Given an empty listen address", t, func() {
		t.Setenv("PULSE_ADDR", "")

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()

		convey.Convey("Then the in-memory store is used", func() {
			store, err := openStore(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			_, ok := store.(*repository.MemoryStore)
			convey.So(ok, convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a postgres store that cannot be reached", t, func() {
		cfg := config.New()
		cfg.Store = config.StorePostgres
		cfg.DatabaseURL = "postgres://pulse@127.0.0.1:1/pulse?sslmode=disable&connect_timeout=1"

		convey.Convey("Then opening fails", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(store, convey.ShouldBeNil)
		})
	})
}

func TestOpenPublisher(t *testing.T) {
	convey.Convey("Given no kafka brokers", t, func() {
		p, err := openPublisher(config.New())

		convey.Convey("Then events are dropped", func() {
			convey.So(err, convey.ShouldBeNil)
			_, ok := p.(events.NopPublisher)
			convey.So(ok, convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given kafka brokers", t, func() {
		cfg := config.New()
		cfg.KafkaBrokers = "localhost:9092, localhost:9093"
		p, err := openPublisher(cfg)

		convey.Convey("Then a kafka publisher is built", func() {
			convey.So(err, convey.ShouldBeNil)
			_, ok := p.(*events.KafkaPublisher)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(p.Close(), convey.ShouldBeNil)
		})
	})
}

func TestHandler(t *testing.T) {
	convey.Convey("Given the wired HTTP handler", t, func() {
		cfg := config.New()
		svc := newService(cfg, repository.NewMemoryStore(), events.NopPublisher{}, logger.Get())
		h := newHandler(svc, cfg)

		serve := func(method, path, body string) int {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w.Code
		}

		convey.Convey("Then API, docs and metrics routes respond", func() {
			convey.So(serve(http.MethodGet, "/healthz", ""), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/api-docs", ""), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/openapi.yaml", ""), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodPost, "/projects",
				`{"name":"Apollo","startDate":"2025-01-01","endDate":"2025-12-31"}`), convey.ShouldEqual, http.StatusCreated)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metric updaters", t, func() {
		svc := app.New()

		convey.Convey("Then a single update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("And the loops return when the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			startSystemMetricsUpdater(ctx)
			startServiceMetricsUpdater(ctx, svc)
			convey.So(ctx.Err(), convey.ShouldNotBeNil)
		})
	})
}

func TestInitMetrics(t *testing.T) {
	convey.Convey("Given configured metric names and buckets", t, func() {
		cfg := config.New()
		cfg.MetricsNamespace = "acme"
		cfg.MetricsSubsystem = "scores"
		cfg.MetricsLatencyBuckets = "1,10,100"

		convey.Convey("When metrics are initialized before the handler is built", func() {
			convey.So(initMetrics(cfg), convey.ShouldBeNil)
			svc := newService(cfg, repository.NewMemoryStore(), events.NopPublisher{}, logger.Get())
			h := newHandler(svc, cfg)

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			convey.Convey("Then the exported series carry the configured prefix", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "acme_scores_queue_dequeue_total")
				convey.So(w.Body.String(), convey.ShouldNotContainSubstring, "pulse_health_queue_dequeue_total")
			})
		})

		convey.Convey("When a bucket bound is malformed", func() {
			cfg.MetricsLatencyBuckets = "1,ten"

			convey.Convey("Then initialization fails", func() {
				convey.So(initMetrics(cfg), convey.ShouldNotBeNil)
			})
		})
	})
}
