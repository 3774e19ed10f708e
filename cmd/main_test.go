package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/okian/tipjar/internal/config"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigureLogging(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	convey.Convey("Given configuration with invalid logging settings", t, func() {
		cfg := config.New(ctx)
		cfg.LogFormat = "xml"
		cfg.LogLevel = "chatty"

		convey.Convey("Then logging falls back and a logger is returned", func() {
			log := configureLogging(ctx, cfg)
			convey.So(log, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given json logging at debug", t, func() {
		cfg := config.New(ctx)
		cfg.LogFormat = "json"
		cfg.LogLevel = "debug"

		convey.Convey("Then it is applied", func() {
			convey.So(configureLogging(ctx, cfg), convey.ShouldNotBeNil)
			_ = logger.SetFormat("text")
			_ = logger.SetLevelString("info")
		})
	})
}

func TestNewServer(t *testing.T) {
	convey.Convey("Given an address and handler", t, func() {
		srv := newServer(":9999", http.NotFoundHandler())

		convey.Convey("Then the server carries the timeouts", func() {
			convey.So(srv.Addr, convey.ShouldEqual, ":9999")
			convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, writeTimeout)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			convey.So(srv.IdleTimeout, convey.ShouldEqual, idleTimeout)
		})
	})
}

func TestRun(t *testing.T) {
	_ = logger.Init()
	t.Setenv("TIPJAR_ADDR", "127.0.0.1:0")
	t.Setenv("TIPJAR_PUBLISH_LATENCY_MIN_MS", "0")
	t.Setenv("TIPJAR_PUBLISH_LATENCY_MAX_MS", "0")

	convey.Convey("Given a context canceled shortly after start", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		convey.Convey("Then run shuts down cleanly", func() {
			convey.So(run(ctx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("TIPJAR_STORE", "cassandra")

		convey.Convey("Then run fails before serving", func() {
			convey.So(run(context.Background()), convey.ShouldNotBeNil)
		})
	})
}
