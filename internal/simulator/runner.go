package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tipjar/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	percentage          = 100
)

// Run seeds the service, submits tips and reviews concurrently and verifies
// every aggregate. It returns ErrMismatch when the service disagrees with
// what was submitted.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("simulator")
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	runID := newRunID()

	log.Info(ctx, "starting tip simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("run", runID),
		logger.Int("owners", cfg.Owners),
		logger.Int("workersPerOwner", cfg.WorkersPerOwner),
		logger.Int("tips", cfg.Tips),
		logger.Int("concurrency", cfg.Concurrency))

	if err := client.checkHealth(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	businesses, err := seed(ctx, client, cfg, runID)
	if err != nil {
		return stats, fmt.Errorf("seeding failed: %w", err)
	}

	plan := planTips(ctx, cfg, runID, businesses)
	stats.TipsPlanned = len(plan)
	submitTips(ctx, client, cfg, plan, stats)
	submitReviews(ctx, client, cfg, plan, stats)

	var serviceStats map[string]any
	if err := client.Get(ctx, "/stats", &serviceStats); err == nil {
		if n, ok := serviceStats["published"].(float64); ok {
			stats.Published = int(n)
		}
	}

	verifyErr := verify(ctx, client, businesses, plan, stats)

	if cfg.OutputFile != "" {
		if err := savePlan(cfg.OutputFile, businesses, plan); err != nil {
			log.Warn(ctx, "failed to save plan", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, verifyErr
}

// seed registers owners and workers and fills every roster.
func seed(ctx context.Context, client *HTTPClient, cfg *Config, runID string) ([]Business, error) {
	type profile struct {
		ID string `json:"id"`
	}

	businesses := make([]Business, 0, cfg.Owners)
	for i := 0; i < cfg.Owners; i++ {
		b := Business{Email: fmt.Sprintf("owner-%s-%d@sim.test", runID, i)}
		var owner profile
		err := client.Post(ctx, "/owners", map[string]string{
			"name":          "Owner " + strconv.Itoa(i),
			"business_name": fmt.Sprintf("Stall %d", i),
			"email":         b.Email,
		}, http.StatusCreated, &owner)
		if err != nil {
			return nil, err
		}
		b.OwnerID = owner.ID

		for j := 0; j < cfg.WorkersPerOwner; j++ {
			email := fmt.Sprintf("worker-%s-%d-%d@sim.test", runID, i, j)
			var w profile
			err := client.Post(ctx, "/workers", map[string]string{
				"name":      fmt.Sprintf("Worker %d.%d", i, j),
				"email":     email,
				"payout_id": fmt.Sprintf("w%d%d@upi", i, j),
			}, http.StatusCreated, &w)
			if err != nil {
				return nil, err
			}
			if err := client.Post(ctx, "/businesses/"+b.OwnerID+"/workers",
				map[string]string{"email": email}, http.StatusCreated, nil); err != nil {
				return nil, err
			}
			b.WorkerIDs = append(b.WorkerIDs, w.ID)
		}
		businesses = append(businesses, b)
	}
	logger.Get().Info(ctx, "seeded businesses", logger.Int("owners", len(businesses)))
	return businesses, nil
}

// parallel calls fn for every index in [0, n) from concurrency goroutines.
func parallel(ctx context.Context, concurrency, n int, fn func(i int)) {
	if concurrency < 1 {
		concurrency = 1
	}
	work := make(chan int, concurrency*2)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if ctx.Err() != nil {
					continue
				}
				fn(i)
			}
		}()
	}
feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break feed
		case work <- i:
		}
	}
	close(work)
	wg.Wait()
}

func submitTips(ctx context.Context, client *HTTPClient, cfg *Config, plan []*PlannedTip, stats *Stats) {
	var recorded, failed atomic.Int64
	parallel(ctx, cfg.Concurrency, len(plan), func(i int) {
		t := plan[i]
		var out struct {
			ID string `json:"id"`
		}
		err := client.Post(ctx, "/tips", map[string]string{
			"worker_id":     t.WorkerID,
			"amount":        t.Amount.String(),
			"customer_name": t.CustomerName,
			"payment_ref":   t.PaymentRef,
		}, http.StatusCreated, &out)
		if err != nil {
			failed.Add(1)
			if cfg.Verbose {
				logger.Get().Warn(ctx, "tip failed", logger.String("payment_ref", t.PaymentRef), logger.Error(err))
			}
			return
		}
		t.TipID = out.ID
		t.Recorded = true
		recorded.Add(1)
	})
	stats.TipsRecorded = int(recorded.Load())
	stats.TipsFailed = int(failed.Load())
	logger.Get().Info(ctx, "tip submission completed",
		logger.Int("recorded", stats.TipsRecorded),
		logger.Int("failed", stats.TipsFailed))
}

func submitReviews(ctx context.Context, client *HTTPClient, cfg *Config, plan []*PlannedTip, stats *Stats) {
	var pending []*PlannedTip
	for _, t := range plan {
		if t.Recorded && t.Rating != nil {
			pending = append(pending, t)
		}
	}
	stats.ReviewsPlanned = len(pending)

	var accepted, failed atomic.Int64
	parallel(ctx, cfg.Concurrency, len(pending), func(i int) {
		t := pending[i]
		body := map[string]any{"rating": *t.Rating}
		if t.Review != "" {
			body["review"] = t.Review
		}
		path := "/tips/" + t.TipID + "/review"
		if !t.ByTip {
			path = "/workers/" + t.WorkerID + "/reviews"
			body["customer_name"] = t.CustomerName
		}
		if err := client.Post(ctx, path, body, http.StatusOK, nil); err != nil {
			failed.Add(1)
			if cfg.Verbose {
				logger.Get().Warn(ctx, "review failed", logger.String("tip_id", t.TipID), logger.Error(err))
			}
			return
		}
		t.Rated = true
		accepted.Add(1)
	})
	stats.ReviewsAccepted = int(accepted.Load())
	stats.ReviewsFailed = int(failed.Load())
	logger.Get().Info(ctx, "review submission completed",
		logger.Int("accepted", stats.ReviewsAccepted),
		logger.Int("failed", stats.ReviewsFailed))
}

// savePlan writes the seeded businesses and tips as indented JSON.
func savePlan(filename string, businesses []Business, plan []*PlannedTip) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(map[string]any{
		"businesses": businesses,
		"tips":       plan,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, tipsPerSecond float64
	if stats.TipsPlanned > 0 {
		successRate = float64(stats.TipsRecorded) / float64(stats.TipsPlanned) * percentage
	}
	if stats.Duration > 0 {
		tipsPerSecond = float64(stats.TipsRecorded) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("tipsPlanned", stats.TipsPlanned),
		logger.Int("tipsRecorded", stats.TipsRecorded),
		logger.Int("tipsFailed", stats.TipsFailed),
		logger.Int("reviewsPlanned", stats.ReviewsPlanned),
		logger.Int("reviewsAccepted", stats.ReviewsAccepted),
		logger.Int("reviewsFailed", stats.ReviewsFailed),
		logger.Int("published", stats.Published),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("tipsPerSecond", tipsPerSecond))
}
