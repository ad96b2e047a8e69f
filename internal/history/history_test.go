package history

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	var (
		store  *Store
		tmpDir string
		dbPath string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "lumen-history-test-*")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(tmpDir, "history.db")

		store, err = Open(dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(store).NotTo(BeNil())
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
		if tmpDir != "" {
			Expect(os.RemoveAll(tmpDir)).To(Succeed())
		}
	})

	Describe("Save and Load", func() {
		It("should round-trip the history map", func() {
			m := Map{
				"firefox": {Count: 5, LastUsed: 2},
				"files":   {Count: 1, LastUsed: 1},
			}
			Expect(store.Save(m)).To(Succeed())

			loaded := store.Load(false, nil)
			Expect(loaded).To(Equal(m))
		})

		It("should replace records deleted from the map", func() {
			Expect(store.Save(Map{"firefox": {Count: 1, LastUsed: 1}})).To(Succeed())
			Expect(store.Save(Map{"files": {Count: 2, LastUsed: 2}})).To(Succeed())

			loaded := store.Load(false, nil)
			Expect(loaded).To(HaveLen(1))
			Expect(loaded).To(HaveKey("files"))
		})

		It("should load an empty map from a fresh database", func() {
			Expect(store.Load(false, nil)).To(BeEmpty())
		})
	})

	Describe("Load with prune", func() {
		BeforeEach(func() {
			m := Map{
				"installed":   {Count: 3, LastUsed: 3},
				"uninstalled": {Count: 9, LastUsed: 2},
			}
			Expect(store.Save(m)).To(Succeed())
		})

		It("should drop records whose id is no longer known", func() {
			known := func(id string) bool { return id == "installed" }

			loaded := store.Load(true, known)
			Expect(loaded).To(HaveLen(1))
			Expect(loaded).To(HaveKey("installed"))
		})

		It("should delete pruned records persistently", func() {
			known := func(id string) bool { return id == "installed" }
			store.Load(true, known)

			// Even a non-pruning load no longer sees the stale record
			loaded := store.Load(false, nil)
			Expect(loaded).To(HaveLen(1))
			Expect(loaded).To(HaveKey("installed"))
		})

		It("should be idempotent for an unchanged entry set", func() {
			known := func(id string) bool { return id == "installed" }

			first := store.Load(true, known)
			second := store.Load(true, known)
			Expect(second).To(Equal(first))
		})
	})

	Describe("RecordUse", func() {
		It("should create a record on first use", func() {
			m := make(Map)
			m.RecordUse("firefox")
			Expect(m["firefox"].Count).To(Equal(uint64(1)))
			Expect(m["firefox"].LastUsed).To(Equal(uint64(1)))
		})

		It("should strictly increase count and never decrease last_used", func() {
			m := make(Map)
			m.RecordUse("firefox")
			first := m["firefox"]

			m.RecordUse("firefox")
			second := m["firefox"]

			Expect(second.Count).To(BeNumerically(">", first.Count))
			Expect(second.LastUsed).To(BeNumerically(">=", first.LastUsed))
		})

		It("should stamp the most recently used entry highest", func() {
			m := make(Map)
			m.RecordUse("firefox")
			m.RecordUse("files")
			m.RecordUse("firefox")

			Expect(m["firefox"].LastUsed).To(BeNumerically(">", m["files"].LastUsed))
		})
	})

	Describe("wire format compatibility", func() {
		writeRaw := func(id string, value []byte) {
			// Close the store so the raw write sees a consistent file
			Expect(store.Close()).To(Succeed())

			db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
			Expect(err).NotTo(HaveOccurred())
			err = db.Update(func(tx *bbolt.Tx) error {
				b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
				if err != nil {
					return err
				}
				return b.Put([]byte(id), value)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Close()).To(Succeed())

			store, err = Open(dbPath)
			Expect(err).NotTo(HaveOccurred())
		}

		It("should read 8-byte legacy values as count-only records", func() {
			legacy := make([]byte, 8)
			binary.BigEndian.PutUint64(legacy, 42)
			writeRaw("legacy", legacy)

			loaded := store.Load(false, nil)
			Expect(loaded["legacy"]).To(Equal(Record{Count: 42, LastUsed: 0}))
		})

		It("should ignore trailing bytes on longer values", func() {
			long := make([]byte, 24)
			binary.BigEndian.PutUint64(long[0:8], 7)
			binary.BigEndian.PutUint64(long[8:16], 3)
			writeRaw("future", long)

			loaded := store.Load(false, nil)
			Expect(loaded["future"]).To(Equal(Record{Count: 7, LastUsed: 3}))
		})

		It("should drop undecodable values", func() {
			writeRaw("corrupt", []byte{1, 2, 3})

			loaded := store.Load(false, nil)
			Expect(loaded).NotTo(HaveKey("corrupt"))
		})
	})

	Describe("degraded store", func() {
		It("should not fail to open over a corrupt file", func() {
			brokenPath := filepath.Join(tmpDir, "broken.db")
			Expect(os.WriteFile(brokenPath, []byte("not a bolt file"), 0600)).To(Succeed())

			broken, err := Open(brokenPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(broken).NotTo(BeNil())

			Expect(broken.Load(false, nil)).To(BeEmpty())
			Expect(broken.Save(Map{"x": {Count: 1}})).NotTo(Succeed())
			Expect(broken.Close()).To(Succeed())
		})
	})

	Describe("Close", func() {
		It("should handle multiple close calls gracefully", func() {
			Expect(store.Close()).To(Succeed())
			store.db = nil
			Expect(store.Close()).To(Succeed())
			store = nil
		})
	})
})
