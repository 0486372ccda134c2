package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/model"
)

func ptr[T any](v T) *T { return &v }

func TestService_UpdateProject(t *testing.T) {
	Convey("Given a stopped service with one project", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: epoch}
		pub := &recordingPublisher{}
		svc := newTestService(clock, service.WithPublisher(pub))
		created, err := svc.CreateProject(ctx, newProject("p1", "Apollo"))
		So(err, ShouldBeNil)

		Convey("When the project was created without employees", func() {
			Convey("Then it carries an empty list", func() {
				So(created.EmployeeIDs, ShouldNotBeNil)
				So(created.EmployeeIDs, ShouldBeEmpty)
			})
		})

		Convey("When only descriptive fields change", func() {
			clock.Advance(time.Hour)
			p, err := svc.UpdateProject(ctx, "p1", service.ProjectUpdate{
				Name:        ptr("Apollo II"),
				EmployeeIDs: []string{"e1"},
			})

			Convey("Then they are stored and no recompute runs", func() {
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "Apollo II")
				So(p.EmployeeIDs, ShouldResemble, []string{"e1"})
				So(p.UpdatedAt, ShouldEqual, epoch.Add(time.Hour))
				So(p.HealthScore, ShouldEqual, 100)
				So(pub.Events(), ShouldBeEmpty)

				got, _ := svc.GetProject(ctx, "p1")
				So(got.Name, ShouldEqual, "Apollo II")
				So(got.ClientID, ShouldEqual, "client-1")
			})
		})

		Convey("When the end date moves into the past", func() {
			p, err := svc.UpdateProject(ctx, "p1", service.ProjectUpdate{
				EndDate: ptr(epoch.AddDate(0, 0, -1)),
			})

			Convey("Then the project is recomputed under the update trigger", func() {
				So(err, ShouldBeNil)
				rc, err := svc.Recompute(ctx, "p1", service.TriggerManual)
				So(err, ShouldBeNil)
				So(p.HealthScore, ShouldEqual, rc.Result.Score)
				So(p.HealthScore, ShouldBeLessThan, 100)

				evs := pub.Events()
				So(len(evs), ShouldEqual, 1)
				So(evs[0].Trigger, ShouldEqual, service.TriggerProjectUpdate)
			})
		})

		Convey("When the new dates are inverted", func() {
			_, err := svc.UpdateProject(ctx, "p1", service.ProjectUpdate{
				StartDate: ptr(epoch.AddDate(1, 0, 0)),
			})

			Convey("Then the update is rejected and nothing changes", func() {
				So(errors.Is(err, model.ErrInvalidProject), ShouldBeTrue)
				got, _ := svc.GetProject(ctx, "p1")
				So(got.StartDate, ShouldEqual, created.StartDate)
			})
		})

		Convey("When the project does not exist", func() {
			_, err := svc.UpdateProject(ctx, "nope", service.ProjectUpdate{Name: ptr("x")})

			Convey("Then it is not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_DeleteProject(t *testing.T) {
	Convey("Given a stopped service with a project and its records", t, func() {
		ctx := context.Background()
		svc := newTestService(&fakeClock{now: epoch})
		_, err := svc.CreateProject(ctx, newProject("p1", "Apollo"))
		So(err, ShouldBeNil)
		_, err = svc.SubmitFeedback(ctx, model.Feedback{ProjectID: "p1", ClientID: "c1", SatisfactionRating: 3, CommunicationRating: 3})
		So(err, ShouldBeNil)

		Convey("When it is deleted", func() {
			So(svc.DeleteProject(ctx, "p1"), ShouldBeNil)

			Convey("Then reads report it missing", func() {
				_, err := svc.GetProject(ctx, "p1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = svc.ListFeedback(ctx, "p1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = svc.Timeline(ctx, "p1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And a second delete is not found", func() {
				So(errors.Is(svc.DeleteProject(ctx, "p1"), repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a started service with a recompute queued behind a busy worker", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store := newGatedStore("blocked")
		svc := newTestService(&fakeClock{now: epoch},
			service.WithStore(store),
			service.WithWorkerCount(1),
		)
		for _, id := range []string{"blocked", "doomed"} {
			_, err := svc.CreateProject(ctx, newProject(id, id))
			So(err, ShouldBeNil)
		}
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.RequestRecompute(ctx, "blocked", service.TriggerManual), ShouldBeNil)
		<-store.entered
		So(svc.RequestRecompute(ctx, "doomed", service.TriggerManual), ShouldBeNil)

		Convey("When the queued project is deleted before a worker reaches it", func() {
			So(svc.DeleteProject(ctx, "doomed"), ShouldBeNil)
			close(store.release)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the drained recompute does not bring it back", func() {
				_, err := svc.GetProject(ctx, "doomed")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				list, err := svc.Watchlist(ctx, 10)
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 1)
				So(list[0].ProjectID, ShouldEqual, "blocked")
			})
		})
	})
}

func TestService_ListFeedbackAndTimeline(t *testing.T) {
	Convey("Given a project with records submitted an hour apart", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: epoch}
		svc := newTestService(clock)
		_, err := svc.CreateProject(ctx, newProject("p1", "Apollo"))
		So(err, ShouldBeNil)

		_, err = svc.SubmitCheckIn(ctx, model.CheckIn{ProjectID: "p1", EmployeeID: "e1",
			ProgressSummary: "schema done", ConfidenceLevel: 4, CompletionPercentage: 30})
		So(err, ShouldBeNil)
		clock.Advance(time.Hour)
		_, err = svc.SubmitFeedback(ctx, model.Feedback{ProjectID: "p1", ClientID: "c1",
			SatisfactionRating: 4, CommunicationRating: 4})
		So(err, ShouldBeNil)
		clock.Advance(time.Hour)
		_, err = svc.SubmitFeedback(ctx, model.Feedback{ProjectID: "p1", ClientID: "c2",
			SatisfactionRating: 2, CommunicationRating: 3, Comments: "slow replies"})
		So(err, ShouldBeNil)
		clock.Advance(time.Hour)
		risk, err := svc.ReportRisk(ctx, model.Risk{ProjectID: "p1", EmployeeID: "e1",
			Title: "vendor delay", Severity: model.SeverityMedium, MitigationPlan: "escalate"})
		So(err, ShouldBeNil)

		Convey("When feedback is listed", func() {
			list, err := svc.ListFeedback(ctx, "p1")

			Convey("Then every submission is returned newest first", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 2)
				So(list[0].ClientID, ShouldEqual, "c2")
				So(list[1].ClientID, ShouldEqual, "c1")
			})
		})

		Convey("When the risk is resolved later and the timeline is read", func() {
			clock.Advance(time.Hour)
			_, err := svc.UpdateRiskStatus(ctx, risk.ID, "resolved")
			So(err, ShouldBeNil)

			tl, err := svc.Timeline(ctx, "p1")
			So(err, ShouldBeNil)

			Convey("Then activities are merged newest first", func() {
				So(tl.ProjectName, ShouldEqual, "Apollo")
				So(len(tl.Activities), ShouldEqual, 4)

				kinds := make([]service.ActivityKind, len(tl.Activities))
				for i, a := range tl.Activities {
					kinds[i] = a.Kind
				}
				So(kinds, ShouldResemble, []service.ActivityKind{
					service.ActivityRisk, service.ActivityFeedback, service.ActivityFeedback, service.ActivityCheckIn,
				})
				So(tl.Activities[0].At, ShouldEqual, epoch.Add(4*time.Hour))
				So(tl.Activities[0].Title, ShouldEqual, "Risk resolved")
				So(tl.Activities[1].Description, ShouldEqual, "slow replies")
				So(tl.Activities[2].Description, ShouldEqual, "No additional comments")
				So(tl.Activities[3].ActorID, ShouldEqual, "e1")
				So(tl.Activities[3].Meta["confidenceLevel"], ShouldEqual, 4)
			})
		})

		Convey("When the project does not exist", func() {
			_, err := svc.ListFeedback(ctx, "nope")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
