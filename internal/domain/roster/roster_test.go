package roster_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/tipjar/internal/adapters/repository"
	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/roster"
	"github.com/okian/tipjar/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// racyStore hides existing memberships from HasMembership so the insert path
// has to report the conflict.
type racyStore struct {
	*repository.MemoryStore
}

func (racyStore) HasMembership(context.Context, string, string) (bool, error) { return false, nil }

func TestAddWorkerToBusiness(t *testing.T) {
	ctx := context.Background()
	_ = logger.Init()

	Convey("Given an owner and a registered worker", t, func() {
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		owner, _ := store.CreateProfile(ctx, model.Profile{Role: model.RoleOwner, Name: "Cafe", Email: "owner@cafe.test", BusinessName: "Cafe"})
		worker, _ := store.CreateProfile(ctx, model.Profile{Role: model.RoleWorker, Name: "Ana", Email: "ana@cafe.test"})
		m := roster.NewManager(store, store, logger.Get())

		Convey("When the worker is added by email", func() {
			entry, err := m.AddWorkerToBusiness(ctx, owner.ID, "ANA@cafe.test")

			Convey("Then they appear on the roster", func() {
				So(err, ShouldBeNil)
				So(entry.WorkerID, ShouldEqual, worker.ID)
				ids, err := m.ListWorkersForBusiness(ctx, owner.ID)
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{worker.ID})
			})

			Convey("And adding them again is a conflict, not an upstream failure", func() {
				_, err := m.AddWorkerToBusiness(ctx, owner.ID, "ana@cafe.test")
				So(errors.Is(err, model.ErrDuplicateMembership), ShouldBeTrue)
				So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
				So(errors.Is(err, model.ErrUpstream), ShouldBeFalse)
			})
		})

		Convey("When the email is unknown", func() {
			_, err := m.AddWorkerToBusiness(ctx, owner.ID, "ghost@cafe.test")

			Convey("Then the worker is not found", func() {
				So(errors.Is(err, model.ErrWorkerNotFound), ShouldBeTrue)
			})
		})

		Convey("When the email belongs to an owner", func() {
			_, err := m.AddWorkerToBusiness(ctx, owner.ID, "owner@cafe.test")

			Convey("Then it is not treated as a worker", func() {
				So(errors.Is(err, model.ErrWorkerNotFound), ShouldBeTrue)
			})
		})

		Convey("When the owner id is actually a worker", func() {
			_, err := m.AddWorkerToBusiness(ctx, worker.ID, "ana@cafe.test")

			Convey("Then the owner is not found", func() {
				So(errors.Is(err, model.ErrOwnerNotFound), ShouldBeTrue)
			})
		})

		Convey("When the store detects the duplicate on insert", func() {
			racy := roster.NewManager(store, racyStore{store}, logger.Get())
			_, _ = racy.AddWorkerToBusiness(ctx, owner.ID, "ana@cafe.test")
			_, err := racy.AddWorkerToBusiness(ctx, owner.ID, "ana@cafe.test")

			Convey("Then the same conflict is returned", func() {
				So(errors.Is(err, model.ErrDuplicateMembership), ShouldBeTrue)
			})
		})

		Convey("When many workers are added concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				email := fmt.Sprintf("w%d@cafe.test", i)
				_, _ = store.CreateProfile(ctx, model.Profile{Role: model.RoleWorker, Email: email})
				wg.Add(2)
				for j := 0; j < 2; j++ {
					go func() {
						defer wg.Done()
						_, _ = m.AddWorkerToBusiness(ctx, owner.ID, email)
					}()
				}
			}
			wg.Wait()

			Convey("Then each appears exactly once", func() {
				ids, _ := m.ListWorkersForBusiness(ctx, owner.ID)
				So(len(ids), ShouldEqual, 10)
			})
		})
	})

	Convey("Given an unknown owner", t, func() {
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		m := roster.NewManager(store, store, logger.Get())

		_, err := m.ListWorkersForBusiness(ctx, "nobody")

		So(errors.Is(err, model.ErrOwnerNotFound), ShouldBeTrue)
	})

	Convey("Given a directory that cannot be reached", t, func() {
		store := repository.NewMemoryStore(ctx)
		defer store.Close()
		m := roster.NewManager(unreachableDirectory{}, store, logger.Get())

		Convey("When a worker is added", func() {
			_, err := m.AddWorkerToBusiness(ctx, "o1", "ana@cafe.test")

			Convey("Then the failure is upstream and keeps its cause", func() {
				So(model.Kind(err), ShouldEqual, model.ErrUpstream)
				So(errors.Is(err, errConnRefused), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "resolve owner o1")
			})
		})

		Convey("When the roster is listed", func() {
			_, err := m.ListWorkersForBusiness(ctx, "o1")

			Convey("Then the failure is upstream", func() {
				So(model.Kind(err), ShouldEqual, model.ErrUpstream)
			})
		})
	})
}

var errConnRefused = errors.New("dial tcp: connection refused")

type unreachableDirectory struct{}

func (unreachableDirectory) GetProfile(context.Context, string) (model.Profile, error) {
	return model.Profile{}, errConnRefused
}

func (unreachableDirectory) FindByEmail(context.Context, string) (model.Profile, error) {
	return model.Profile{}, errConnRefused
}
