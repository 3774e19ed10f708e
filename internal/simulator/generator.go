package simulator

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/tipjar/pkg/logger"
)

// Amount bounds in paise: tips range from 10.00 to 500.00.
const (
	minAmountCents = 1_000
	maxAmountCents = 50_000
	ratioPrecision = 1_000_000
)

var reviewTexts = []string{
	"",
	"great service",
	"quick and friendly",
	"could be faster",
	"the chai was cold",
	"will come back",
}

// randInt returns a uniform integer in [0, n).
func randInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// chance reports true with probability p.
func chance(p float64) bool {
	return float64(randInt(ratioPrecision)) < p*ratioPrecision
}

// planTips lays out cfg.Tips tips spread randomly over the seeded workers.
// Every tip gets its own customer so reviews by name hit exactly that tip.
func planTips(ctx context.Context, cfg *Config, runID string, businesses []Business) []*PlannedTip {
	var workers []string
	for _, b := range businesses {
		workers = append(workers, b.WorkerIDs...)
	}
	if len(workers) == 0 {
		return nil
	}

	plan := make([]*PlannedTip, cfg.Tips)
	for i := range plan {
		cents := minAmountCents + randInt(maxAmountCents-minAmountCents+1)
		t := &PlannedTip{
			WorkerID:     workers[randInt(len(workers))],
			Amount:       decimal.New(int64(cents), -2),
			CustomerName: "customer-" + runID + "-" + strconv.Itoa(i),
			PaymentRef:   "sim-" + runID + "-" + strconv.Itoa(i),
		}
		if chance(cfg.ReviewRatio) {
			rating := 1 + randInt(5)
			t.Rating = &rating
			t.Review = reviewTexts[randInt(len(reviewTexts))]
			t.ByTip = randInt(2) == 0
		}
		plan[i] = t
	}

	logger.Get().Info(ctx, "planned tips", logger.Int("tips", len(plan)), logger.Int("workers", len(workers)))
	return plan
}

func newRunID() string {
	return uuid.NewString()[:8]
}
