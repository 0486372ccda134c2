package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/domain/model"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	msgs     []kafka.Message
	calls    int
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failures > 0 {
		w.failures--
		return errors.New("leader not available")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() HealthChanged {
	return HealthChanged{
		ProjectID:  "p1",
		OldScore:   85,
		NewScore:   58,
		OldStatus:  model.StatusOnTrack,
		NewStatus:  model.StatusCritical,
		Trigger:    "risk",
		ComputedAt: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher(t *testing.T) {
	Convey("Given a kafka publisher over a fake writer", t, func() {
		ctx := context.Background()
		w := &fakeWriter{}
		p := newKafkaPublisher(w, 3)

		Convey("When an event is published", func() {
			So(p.Publish(ctx, sampleEvent()), ShouldBeNil)

			Convey("Then one message keyed by project id carries the JSON event", func() {
				So(len(w.msgs), ShouldEqual, 1)
				So(string(w.msgs[0].Key), ShouldEqual, "p1")

				var got HealthChanged
				So(json.Unmarshal(w.msgs[0].Value, &got), ShouldBeNil)
				So(got, ShouldResemble, sampleEvent())
				So(got.StatusChanged(), ShouldBeTrue)
			})
		})

		Convey("When the writer fails transiently", func() {
			w.failures = 2
			err := p.Publish(ctx, sampleEvent())

			Convey("Then the publisher retries until it succeeds", func() {
				So(err, ShouldBeNil)
				So(w.calls, ShouldEqual, 3)
				So(len(w.msgs), ShouldEqual, 1)
			})
		})

		Convey("When the writer keeps failing", func() {
			w.failures = 10
			err := p.Publish(ctx, sampleEvent())

			Convey("Then the last error is returned after max attempts", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "leader not available")
				So(w.calls, ShouldEqual, 3)
			})
		})

		Convey("When the context is cancelled between attempts", func() {
			w.failures = 10
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := p.Publish(cctx, sampleEvent())

			Convey("Then publishing stops early", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(w.calls, ShouldEqual, 1)
			})
		})

		Convey("When closed", func() {
			So(p.Close(), ShouldBeNil)
			So(w.closed, ShouldBeTrue)
		})
	})

	Convey("Given missing kafka configuration", t, func() {
		_, err := NewKafkaPublisher(KafkaConfig{Topic: "t"})
		So(err, ShouldNotBeNil)

		_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
		So(err, ShouldNotBeNil)
	})

	Convey("Given a complete kafka configuration", t, func() {
		p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "project-health"})

		So(err, ShouldBeNil)
		So(p.maxAttempts, ShouldEqual, defaultMaxAttempts)
		So(p.Close(), ShouldBeNil)
	})
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
