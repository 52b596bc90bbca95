package ui

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Summary.HashesPerSecond", func() {
	It("should divide processed hashes by elapsed seconds", func() {
		s := Summary{Processed: 1000, Elapsed: 2 * time.Second}
		Expect(s.HashesPerSecond()).To(Equal(float64(500)))
	})

	It("should floor sub-second elapsed time at one second", func() {
		// Elapsed below one second must not inflate the rate via division by a
		// fractional second.
		s := Summary{Processed: 10, Elapsed: 100 * time.Millisecond}
		Expect(s.HashesPerSecond()).To(Equal(float64(10)))
	})
})

var _ = Describe("Spinner.Report", func() {
	It("should write the processed count and rate", func() {
		var buf bytes.Buffer
		r := NewSpinner(&buf)
		r.Report(Summary{Processed: 42, Elapsed: time.Second})
		Expect(buf.String()).To(ContainSubstring("processed: 42"))
		Expect(buf.String()).To(ContainSubstring("H/s"))
	})
})

var _ = Describe("Nop", func() {
	It("should be silent and never panic", func() {
		var r Reporter = Nop{}
		Expect(func() {
			r.Begin("mining")
			r.Tick()
			r.Report(Summary{Processed: 1, Elapsed: time.Second})
			r.Finish()
		}).NotTo(Panic())
	})
})
