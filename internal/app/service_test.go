package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	service "github.com/okian/tipjar/internal/app"
	"github.com/okian/tipjar/internal/config"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/okian/tipjar/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func fastConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.PublishLatencyMinMS, cfg.PublishLatencyMaxMS = 0, 0
	cfg.PaymentLatencyMinMS, cfg.PaymentLatencyMaxMS = 0, 0
	cfg.PublishWorkerCount = 2
	cfg.PublishQueueSize = 100
	return cfg
}

func call(h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(fastConfig())
		defer svc.Stop()

		Convey("Then the handler is unavailable before start", func() {
			_, err := svc.Handler()
			So(err, ShouldEqual, service.ErrNotStarted)
			So(svc.GetStats(context.Background())["started"], ShouldBeFalse)
		})

		Convey("When it is started", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stats describe the components", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldBeTrue)
				So(stats["store"], ShouldEqual, config.StoreMemory)
				So(stats["publishWorkers"], ShouldEqual, 2)
				So(stats["tips"], ShouldEqual, 0)
			})

			Convey("And stats report record gauges under the store's kinds", func() {
				svc.GetStats(ctx)
				families, err := metrics.GetRegistry().Gather()
				So(err, ShouldBeNil)
				kinds := map[string]bool{}
				for _, fam := range families {
					if !strings.HasSuffix(fam.GetName(), "repository_records") {
						continue
					}
					for _, m := range fam.GetMetric() {
						for _, l := range m.GetLabel() {
							if l.GetName() == "kind" {
								kinds[l.GetValue()] = true
							}
						}
					}
				}
				So(kinds[metrics.RecordsRosterEntries], ShouldBeTrue)
				So(kinds["roster"], ShouldBeFalse)
			})

			Convey("And the handler serves the documentation", func() {
				h, err := svc.Handler()
				So(err, ShouldBeNil)
				rec, _ := call(h, http.MethodGet, "/openapi.yaml", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
			})

			Convey("And stopping twice is safe", func() {
				svc.Stop()
				svc.Stop()
				_, err := svc.Handler()
				So(err, ShouldEqual, service.ErrNotStarted)
			})
		})
	})
}

func TestService_TipFlow(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(fastConfig())
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		h, _ := svc.Handler()

		_, owner := call(h, http.MethodPost, "/owners", `{"name":"Priya","business_name":"Chai Shop","email":"priya@shop.test"}`)
		_, worker := call(h, http.MethodPost, "/workers", `{"name":"Arjun","email":"arjun@shop.test","payout_id":"arjun@upi"}`)
		ownerID, _ := owner["id"].(string)
		workerID, _ := worker["id"].(string)
		So(ownerID, ShouldNotBeEmpty)
		So(workerID, ShouldNotBeEmpty)

		rec, _ := call(h, http.MethodPost, "/businesses/"+ownerID+"/workers", `{"email":"ARJUN@shop.test"}`)
		So(rec.Code, ShouldEqual, http.StatusCreated)

		Convey("When a tip is rated five stars", func() {
			rec, _ := call(h, http.MethodPost, "/tips", `{"worker_id":"`+workerID+`","amount":"250.50","customer_name":"Asha","payment_ref":"pay-1"}`)
			So(rec.Code, ShouldEqual, http.StatusCreated)
			rec, out := call(h, http.MethodPost, "/workers/"+workerID+"/reviews", `{"customer_name":"Asha","rating":5,"review":"lovely chai"}`)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(out["published"], ShouldBeTrue)

			Convey("Then stopping delivers it to the public board", func() {
				svc.Stop()
				So(svc.Published(), ShouldEqual, 1)
			})

			Convey("And the business aggregate reflects it", func() {
				rec, out := call(h, http.MethodGet, "/businesses/"+ownerID+"/aggregate", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(out["total_earnings"], ShouldEqual, "250.5")
				So(out["average_rating"], ShouldEqual, 5.0)
			})

			Convey("And a replayed payment reference conflicts", func() {
				rec, _ := call(h, http.MethodPost, "/tips", `{"worker_id":"`+workerID+`","amount":"1","payment_ref":"pay-1"}`)
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(svc.GetStats(context.Background())["tips"], ShouldEqual, 1)
			})
		})

		Convey("When a tip is rated two stars", func() {
			call(h, http.MethodPost, "/tips", `{"worker_id":"`+workerID+`","amount":"10"}`)
			_, out := call(h, http.MethodPost, "/workers/"+workerID+"/reviews", `{"rating":2}`)

			Convey("Then it stays private", func() {
				So(out["visibility"], ShouldEqual, "private_feedback")
				svc.Stop()
				So(svc.Published(), ShouldEqual, 0)
			})
		})
	})
}

func TestService_PostgresWithoutDSN(t *testing.T) {
	Convey("Given a postgres config with no reachable database", t, func() {
		cfg := fastConfig()
		cfg.Store = config.StorePostgres
		cfg.PostgresDSN = ""
		svc := service.New(cfg)

		Convey("Then start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}
