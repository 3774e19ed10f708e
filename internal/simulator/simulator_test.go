package simulator_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/tipjar/internal/app"
	"github.com/okian/tipjar/internal/config"
	"github.com/okian/tipjar/internal/simulator"
	"github.com/okian/tipjar/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func startService(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.New(context.Background())
	cfg.PaymentLatencyMinMS, cfg.PaymentLatencyMaxMS = 0, 0
	cfg.PublishLatencyMinMS, cfg.PublishLatencyMaxMS = 0, 0
	cfg.PublishWorkerCount = 2

	svc := service.New(cfg)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	h, err := svc.Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func TestRun(t *testing.T) {
	_ = logger.Init()

	Convey("Given a running service", t, func() {
		srv := startService(t)
		out := filepath.Join(t.TempDir(), "plan.json")

		Convey("When a simulation runs against it", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			stats, err := simulator.Run(ctx, &simulator.Config{
				BaseURL:         srv.URL,
				Owners:          2,
				WorkersPerOwner: 3,
				Tips:            60,
				ReviewRatio:     0.7,
				Concurrency:     8,
				Timeout:         5 * time.Second,
				OutputFile:      out,
			})

			Convey("Then every tip is recorded and every aggregate agrees", func() {
				So(err, ShouldBeNil)
				So(stats.TipsRecorded, ShouldEqual, 60)
				So(stats.TipsFailed, ShouldEqual, 0)
				So(stats.ReviewsFailed, ShouldEqual, 0)
				So(stats.ReviewsAccepted, ShouldEqual, stats.ReviewsPlanned)
				So(stats.Mismatches, ShouldEqual, 0)
				_, statErr := os.Stat(out)
				So(statErr, ShouldBeNil)
			})
		})
	})

	Convey("Given no service", t, func() {
		srv := httptest.NewServer(nil)
		url := srv.URL
		srv.Close()

		Convey("Then the health check fails", func() {
			_, err := simulator.Run(context.Background(), &simulator.Config{
				BaseURL: url, Owners: 1, WorkersPerOwner: 1, Tips: 1, Concurrency: 1, Timeout: time.Second,
			})
			So(err, ShouldNotBeNil)
			So(errors.Is(err, simulator.ErrMismatch), ShouldBeFalse)
		})
	})
}
