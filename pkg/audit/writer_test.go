package audit_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/supportflow/conversation-router/pkg/audit"
)

var _ = Describe("AsyncWriter", func() {
	var store *audit.MemoryStore

	BeforeEach(func() {
		store = audit.NewMemoryStore(100, 0, true)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("persists records asynchronously", func() {
		writer := audit.NewAsyncWriter(store, audit.AsyncWriterConfig{BufferSize: 10, Workers: 1})
		writer.Start()

		writer.Record(record("w1", "room-1", "matched"))

		Eventually(func() error {
			_, err := store.GetRecord(context.Background(), "w1")
			return err
		}, time.Second, 10*time.Millisecond).Should(Succeed())

		writer.Stop()
	})

	It("drains buffered records on stop", func() {
		writer := audit.NewAsyncWriter(store, audit.AsyncWriterConfig{BufferSize: 10, Workers: 1})
		writer.Start()
		for i := 0; i < 5; i++ {
			writer.Record(record(string(rune('a'+i)), "room-1", "no_match"))
		}
		writer.Stop()

		records, err := store.ListRecords(context.Background(), audit.ListOptions{Limit: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(5))
	})

	It("drops nil records and records for disabled stores", func() {
		disabled := audit.NewMemoryStore(10, 0, false)
		defer disabled.Close()

		writer := audit.NewAsyncWriter(disabled, audit.AsyncWriterConfig{})
		writer.Start()
		writer.Record(nil)
		writer.Record(record("d1", "room-1", "matched"))
		writer.Stop()

		Expect(disabled.IsEnabled()).To(BeFalse())
	})

	It("tolerates double start and double stop", func() {
		writer := audit.NewAsyncWriter(store, audit.AsyncWriterConfig{})
		writer.Start()
		writer.Start()
		writer.Stop()
		writer.Stop()
	})
})
