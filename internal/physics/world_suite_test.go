package physics_test

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rigidsim/internal/body"
	"github.com/san-kum/rigidsim/internal/jobs"
	"github.com/san-kum/rigidsim/internal/layers"
	"github.com/san-kum/rigidsim/internal/physics"
	"github.com/san-kum/rigidsim/internal/scratch"
)

var _ = Describe("World", func() {
	var (
		world *physics.World
		bi    *body.Interface
		alloc *scratch.Allocator
		pool  *jobs.Pool
	)

	BeforeEach(func() {
		var err error
		world, err = physics.New(physics.DefaultSettings())
		Expect(err).NotTo(HaveOccurred())
		bi = world.BodyInterface()
		alloc = scratch.New(scratch.DefaultSize)
		pool = jobs.NewPool(512, 8, 2)
		DeferCleanup(pool.Close)
	})

	posY := func(id body.BodyID) float64 {
		p, err := bi.GetPosition(id)
		Expect(err).NotTo(HaveOccurred())
		return p.Y()
	}

	Describe("body lifecycle", func() {
		It("reports created and added bodies as in the broad phase", func() {
			id, err := bi.Create(cube(2, body.Dynamic, layers.Moving))
			Expect(err).NotTo(HaveOccurred())

			lock := world.LockInterface().LockRead(id)
			Expect(lock.Succeeded()).To(BeTrue())
			Expect(lock.SucceededAndIsInBroadPhase()).To(BeFalse())
			lock.Release()

			Expect(bi.Add(id, body.Activate)).To(Succeed())
			lock = world.LockInterface().LockRead(id)
			defer lock.Release()
			Expect(lock.SucceededAndIsInBroadPhase()).To(BeTrue())
			Expect(world.NumActiveBodies()).To(Equal(1))
		})

		It("fails every lookup through a removed handle", func() {
			id, err := bi.CreateAndAdd(cube(2, body.Dynamic, layers.Moving), body.Activate)
			Expect(err).NotTo(HaveOccurred())
			Expect(bi.Remove(id)).To(Succeed())

			_, err = bi.Create(cube(3, body.Dynamic, layers.Moving))
			Expect(err).NotTo(HaveOccurred())

			lock := world.LockInterface().LockWrite(id)
			Expect(lock.Succeeded()).To(BeFalse())
			_, err = bi.GetPosition(id)
			Expect(err).To(MatchError(body.ErrStaleHandle))
			Expect(bi.SetLinearVelocity(id, mgl64.Vec3{1, 0, 0})).To(MatchError(body.ErrStaleHandle))
			Expect(world.NumActiveBodies()).To(BeZero())
		})

		It("keeps DontActivate bodies in the broad phase but asleep", func() {
			id, err := bi.CreateAndAdd(cube(4, body.Dynamic, layers.Moving), body.DontActivate)
			Expect(err).NotTo(HaveOccurred())

			Expect(world.Step(dt, 1, 1, alloc, pool)).To(Succeed())
			Expect(bi.IsActive(id)).To(BeFalse())
			Expect(world.Store().BroadPhase().Contains(id.Index())).To(BeTrue())
			Expect(posY(id)).To(Equal(4.0))
		})
	})

	Describe("stepping", func() {
		It("returns to idle and counts steps", func() {
			_, err := bi.CreateAndAdd(cube(4, body.Dynamic, layers.Moving), body.Activate)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 3; i++ {
				Expect(world.Step(dt, 1, 1, alloc, pool)).To(Succeed())
			}
			Expect(world.State()).To(Equal(physics.Idle))
			Expect(world.Steps()).To(BeEquivalentTo(3))
			Expect(world.LastStepStats().ActiveBodies).To(Equal(1))
		})

		It("serializes concurrent steps", func() {
			_, err := bi.CreateAndAdd(cube(40, body.Dynamic, layers.Moving), body.Activate)
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			for g := 0; g < 2; g++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					a := scratch.New(scratch.DefaultSize)
					for i := 0; i < 10; i++ {
						Expect(world.Step(dt, 1, 1, a, pool)).To(Succeed())
					}
				}()
			}
			wg.Wait()
			Expect(world.Steps()).To(BeEquivalentTo(20))
		})

		It("aborts on scratch exhaustion and can be stepped again", func() {
			id, err := bi.CreateAndAdd(cube(4, body.Dynamic, layers.Moving), body.Activate)
			Expect(err).NotTo(HaveOccurred())

			err = world.Step(dt, 1, 1, scratch.New(32), pool)
			Expect(err).To(MatchError(scratch.ErrOutOfScratch))
			var se *physics.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(posY(id)).To(Equal(4.0))

			Expect(world.Step(dt, 1, 1, alloc, pool)).To(Succeed())
			Expect(posY(id)).To(BeNumerically("<", 4.0))
		})

		It("brings a dropped cube to rest on the ground", func() {
			_, err := bi.CreateAndAdd(ground(), body.DontActivate)
			Expect(err).NotTo(HaveOccurred())
			id, err := bi.CreateAndAdd(cube(2, body.Dynamic, layers.Moving), body.Activate)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 180; i++ {
				Expect(world.Step(dt, 1, 1, alloc, pool)).To(Succeed())
			}
			Expect(posY(id)).To(BeNumerically("~", 0.5, 0.05))
			Expect(bi.IsActive(id)).To(BeFalse())
		})
	})
})
