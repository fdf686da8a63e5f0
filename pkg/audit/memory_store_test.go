package audit_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/supportflow/conversation-router/pkg/audit"
)

func record(id, roomID, outcome string) *audit.MatchRecord {
	return &audit.MatchRecord{
		ID:        id,
		Timestamp: time.Now(),
		RoomID:    roomID,
		MessageID: "msg-" + id,
		Outcome:   outcome,
	}
}

var _ = Describe("MemoryStore", func() {
	var (
		store *audit.MemoryStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = audit.NewMemoryStore(5, 0, true)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("stores and retrieves records", func() {
		rec := record("r1", "room-1", "matched")
		Expect(store.StoreRecord(ctx, rec)).To(Succeed())

		got, err := store.GetRecord(ctx, "r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MessageID).To(Equal("msg-r1"))
	})

	It("returns ErrNotFound for unknown ids", func() {
		_, err := store.GetRecord(ctx, "missing")
		Expect(err).To(MatchError(audit.ErrNotFound))
	})

	It("rejects invalid input", func() {
		Expect(store.StoreRecord(ctx, nil)).To(MatchError(audit.ErrInvalidInput))
		Expect(store.StoreRecord(ctx, &audit.MatchRecord{})).To(MatchError(audit.ErrInvalidInput))
	})

	It("evicts the oldest record at capacity", func() {
		for i := 0; i < 6; i++ {
			Expect(store.StoreRecord(ctx, record(fmt.Sprintf("r%d", i), "room-1", "no_match"))).To(Succeed())
		}

		_, err := store.GetRecord(ctx, "r0")
		Expect(err).To(MatchError(audit.ErrNotFound))

		got, err := store.GetRecord(ctx, "r5")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal("r5"))
	})

	It("lists newest first with a limit", func() {
		for i := 0; i < 4; i++ {
			Expect(store.StoreRecord(ctx, record(fmt.Sprintf("r%d", i), "room-1", "no_match"))).To(Succeed())
		}

		records, err := store.ListRecords(ctx, audit.ListOptions{Limit: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].ID).To(Equal("r3"))
		Expect(records[1].ID).To(Equal("r2"))
	})

	It("filters by room and outcome", func() {
		Expect(store.StoreRecord(ctx, record("a", "room-1", "matched"))).To(Succeed())
		Expect(store.StoreRecord(ctx, record("b", "room-2", "matched"))).To(Succeed())
		Expect(store.StoreRecord(ctx, record("c", "room-1", "no_match"))).To(Succeed())

		byRoom, err := store.ListRecords(ctx, audit.ListOptions{RoomID: "room-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(byRoom).To(HaveLen(2))

		byOutcome, err := store.ListRecords(ctx, audit.ListOptions{RoomID: "room-1", Outcome: "matched"})
		Expect(err).NotTo(HaveOccurred())
		Expect(byOutcome).To(HaveLen(1))
		Expect(byOutcome[0].ID).To(Equal("a"))
	})

	Context("when disabled", func() {
		BeforeEach(func() {
			Expect(store.Close()).To(Succeed())
			store = audit.NewMemoryStore(5, 0, false)
		})

		It("refuses every operation", func() {
			Expect(store.IsEnabled()).To(BeFalse())
			Expect(store.CheckConnection(ctx)).To(MatchError(audit.ErrStoreDisabled))
			Expect(store.StoreRecord(ctx, record("r1", "room-1", "matched"))).To(MatchError(audit.ErrStoreDisabled))
			_, err := store.ListRecords(ctx, audit.ListOptions{})
			Expect(err).To(MatchError(audit.ErrStoreDisabled))
		})
	})
})
