package ledger_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/tipjar/internal/adapters/repository"
	"github.com/okian/tipjar/internal/domain/ledger"
	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func strp(s string) *string { return &s }

func setup(t *testing.T) (*ledger.Ledger, *repository.MemoryStore, model.Profile) {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	store := repository.NewMemoryStore(context.Background())
	t.Cleanup(func() { _ = store.Close() })
	w, err := store.CreateProfile(context.Background(), model.Profile{Role: model.RoleWorker, Name: "Meera", Email: "meera@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	return ledger.New(store, store, logger.Get()), store, w
}

func TestValidation(t *testing.T) {
	Convey("Amounts must be positive", t, func() {
		So(ledger.ValidateAmount(decimal.NewFromInt(1)), ShouldBeNil)
		So(errors.Is(ledger.ValidateAmount(decimal.Zero), model.ErrInvalidAmount), ShouldBeTrue)
		So(errors.Is(ledger.ValidateAmount(decimal.NewFromInt(-5)), model.ErrValidation), ShouldBeTrue)
	})

	Convey("Ratings must be within one to five", t, func() {
		for _, r := range []int{1, 3, 5} {
			So(ledger.ValidateRating(r), ShouldBeNil)
		}
		for _, r := range []int{0, 6, -1} {
			So(errors.Is(ledger.ValidateRating(r), model.ErrInvalidRating), ShouldBeTrue)
		}
	})

	Convey("Reviews are limited to 200 characters", t, func() {
		exact := strings.Repeat("a", 200)
		got, err := ledger.NormalizeReview(&exact)
		So(err, ShouldBeNil)
		So(*got, ShouldEqual, exact)

		long := strings.Repeat("a", 201)
		_, err = ledger.NormalizeReview(&long)
		So(errors.Is(err, model.ErrReviewTooLong), ShouldBeTrue)

		// 200 multi-byte characters are still 200 characters.
		wide := strings.Repeat("é", 200)
		_, err = ledger.NormalizeReview(&wide)
		So(err, ShouldBeNil)
	})

	Convey("Blank reviews become absent", t, func() {
		got, err := ledger.NormalizeReview(strp("   "))
		So(err, ShouldBeNil)
		So(got, ShouldBeNil)
		got, err = ledger.NormalizeReview(nil)
		So(err, ShouldBeNil)
		So(got, ShouldBeNil)
	})

	Convey("Blank customer names become Anonymous", t, func() {
		So(ledger.CustomerOrAnonymous(""), ShouldEqual, model.AnonymousCustomer)
		So(ledger.CustomerOrAnonymous("  Kiran "), ShouldEqual, "Kiran")
	})
}

func TestRecordTip(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ledger with one worker", t, func() {
		l, _, w := setup(t)

		Convey("When a tip is recorded without a customer name", func() {
			tip, err := l.RecordTip(ctx, model.NewTip{WorkerID: w.ID, Amount: decimal.NewFromInt(50)})

			Convey("Then it is stored unrated under Anonymous", func() {
				So(err, ShouldBeNil)
				So(tip.CustomerName, ShouldEqual, "Anonymous")
				So(tip.Rating, ShouldBeNil)
				So(tip.Review, ShouldBeNil)
				So(tip.State(), ShouldEqual, model.TipCreated)
			})
		})

		Convey("When the amount is not positive", func() {
			_, err := l.RecordTip(ctx, model.NewTip{WorkerID: w.ID, Amount: decimal.Zero})

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, model.ErrInvalidAmount), ShouldBeTrue)
			})
		})

		Convey("When the worker is unknown", func() {
			_, err := l.RecordTip(ctx, model.NewTip{WorkerID: "ghost", Amount: decimal.NewFromInt(5)})

			Convey("Then the worker is not found", func() {
				So(errors.Is(err, model.ErrWorkerNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestAttachReview(t *testing.T) {
	ctx := context.Background()

	Convey("Given two tips from the same customer", t, func() {
		l, _, w := setup(t)
		older, _ := l.RecordTip(ctx, model.NewTip{WorkerID: w.ID, Amount: decimal.NewFromInt(10), CustomerName: "Asha"})
		time.Sleep(time.Millisecond)
		newer, _ := l.RecordTip(ctx, model.NewTip{WorkerID: w.ID, Amount: decimal.NewFromInt(20), CustomerName: "Asha"})

		Convey("When the customer reviews", func() {
			tip, err := l.AttachReview(ctx, w.ID, "Asha", 5, strp("  thank you  "))

			Convey("Then only the most recent tip is rated", func() {
				So(err, ShouldBeNil)
				So(tip.ID, ShouldEqual, newer.ID)
				So(*tip.Review, ShouldEqual, "thank you")
				got, _ := l.GetTip(ctx, older.ID)
				So(got.State(), ShouldEqual, model.TipCreated)
			})
		})

		Convey("When the rating is out of range", func() {
			_, err := l.AttachReview(ctx, w.ID, "Asha", 6, nil)

			Convey("Then nothing changes", func() {
				So(errors.Is(err, model.ErrInvalidRating), ShouldBeTrue)
				got, _ := l.GetTip(ctx, newer.ID)
				So(got.Rating, ShouldBeNil)
			})
		})

		Convey("When the review is too long", func() {
			_, err := l.AttachReview(ctx, w.ID, "Asha", 4, strp(strings.Repeat("x", 201)))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrReviewTooLong), ShouldBeTrue)
			})
		})

		Convey("When no tip matches the customer", func() {
			_, err := l.AttachReview(ctx, w.ID, "Nobody", 4, nil)

			Convey("Then it is not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the review is submitted twice", func() {
			_, _ = l.AttachReview(ctx, w.ID, "Asha", 5, strp("first"))
			before, err := l.ListTipsForWorker(ctx, w.ID)
			So(err, ShouldBeNil)
			tip, err := l.AttachReview(ctx, w.ID, "Asha", 3, nil)
			after, _ := l.ListTipsForWorker(ctx, w.ID)

			Convey("Then the last submission wins", func() {
				So(err, ShouldBeNil)
				So(tip.ID, ShouldEqual, newer.ID)
				So(*tip.Rating, ShouldEqual, 3)
				So(tip.Review, ShouldBeNil)
			})

			Convey("Then no tip is added", func() {
				So(len(after), ShouldEqual, len(before))
				So(len(after), ShouldEqual, 2)
			})
		})

		Convey("When the older tip is reviewed by id", func() {
			tip, err := l.AttachReviewToTip(ctx, older.ID, 4, nil)

			Convey("Then that exact tip is rated", func() {
				So(err, ShouldBeNil)
				So(tip.ID, ShouldEqual, older.ID)
				So(*tip.Rating, ShouldEqual, 4)
			})
		})
	})

	Convey("Given an anonymous tip", t, func() {
		l, _, w := setup(t)
		anon, _ := l.RecordTip(ctx, model.NewTip{WorkerID: w.ID, Amount: decimal.NewFromInt(10)})

		Convey("Then a review without a name finds it", func() {
			tip, err := l.AttachReview(ctx, w.ID, "", 4, nil)
			So(err, ShouldBeNil)
			So(tip.ID, ShouldEqual, anon.ID)
		})
	})
}

func TestAttachReviewRacesRecordTip(t *testing.T) {
	ctx := context.Background()

	Convey("Given reviews racing new tips for the same customer", t, func() {
		l, _, w := setup(t)
		_, _ = l.RecordTip(ctx, model.NewTip{WorkerID: w.ID, Amount: decimal.NewFromInt(1), CustomerName: "Asha"})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = l.RecordTip(ctx, model.NewTip{WorkerID: w.ID, Amount: decimal.NewFromInt(1), CustomerName: "Asha"})
			}()
			go func() {
				defer wg.Done()
				_, _ = l.AttachReview(ctx, w.ID, "Asha", 5, nil)
			}()
		}
		wg.Wait()

		Convey("Then every tip is intact and each review landed on a whole record", func() {
			tips, err := l.ListTipsForWorker(ctx, w.ID)
			So(err, ShouldBeNil)
			So(len(tips), ShouldEqual, 21)
			for _, tip := range tips {
				So(tip.Amount.Equal(decimal.NewFromInt(1)), ShouldBeTrue)
				if tip.Rating != nil {
					So(*tip.Rating, ShouldEqual, 5)
				}
			}
		})
	})
}

var errStorageDown = errors.New("dial tcp: connection refused")

type downDirectory struct{}

func (downDirectory) GetProfile(context.Context, string) (model.Profile, error) {
	return model.Profile{}, errStorageDown
}

// downStore fails every read and write with a driver error.
type downStore struct{ *repository.MemoryStore }

func (downStore) AmendTip(context.Context, string, model.ReviewUpdate) (model.Tip, error) {
	return model.Tip{}, errStorageDown
}

func (downStore) GetTip(context.Context, string) (model.Tip, error) {
	return model.Tip{}, errStorageDown
}

func TestStorageOutage(t *testing.T) {
	ctx := context.Background()
	_ = logger.Init()

	Convey("Given a directory that cannot be reached", t, func() {
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		l := ledger.New(store, downDirectory{}, logger.Get())

		_, err := l.RecordTip(ctx, model.NewTip{WorkerID: "w1", Amount: decimal.NewFromInt(5)})

		Convey("Then recording a tip fails upstream, not as a missing worker", func() {
			So(model.Kind(err), ShouldEqual, model.ErrUpstream)
			So(errors.Is(err, model.ErrWorkerNotFound), ShouldBeFalse)
			So(errors.Is(err, errStorageDown), ShouldBeTrue)
		})
	})

	Convey("Given a tip store that is down", t, func() {
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		l := ledger.New(downStore{store}, store, logger.Get())

		_, err1 := l.GetTip(ctx, "t1")
		_, err2 := l.AttachReviewToTip(ctx, "t1", 4, nil)

		Convey("Then reads and amendments fail upstream", func() {
			So(model.Kind(err1), ShouldEqual, model.ErrUpstream)
			So(model.Kind(err2), ShouldEqual, model.ErrUpstream)
		})
	})
}
