package logger

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Logrus", func() {
	It("should write the message and fields", func() {
		l := NewLogrus()
		var buf bytes.Buffer
		l.entry.Logger.SetOutput(&buf)

		l.Info("job dispatched", "nonce_start", uint64(0))

		Expect(buf.String()).To(ContainSubstring("job dispatched"))
		Expect(buf.String()).To(ContainSubstring("nonce_start=0"))
	})

	It("should add a module field via .Module", func() {
		l := NewLogrus()
		var buf bytes.Buffer
		l.entry.Logger.SetOutput(&buf)

		sub := l.Module("search")
		sub.Info("engine started")

		Expect(buf.String()).To(ContainSubstring("module=search"))
		Expect(buf.String()).To(ContainSubstring("engine started"))
	})

	It("should gate messages below the configured level", func() {
		l := NewLogrus()
		var buf bytes.Buffer
		l.entry.Logger.SetOutput(&buf)

		l.SetToError()
		l.Info("should not appear")
		Expect(buf.String()).To(BeEmpty())

		l.Warn("should not appear either")
		Expect(buf.String()).To(BeEmpty())

		l.Error("should appear")
		Expect(buf.String()).To(ContainSubstring("should appear"))
	})

	It("should ignore an odd trailing key in fields", func() {
		f := fields([]interface{}{"a", 1, "b"})
		Expect(f["a"]).To(Equal(1))
		_, hasB := f["b"]
		Expect(hasB).To(BeFalse())
	})
})
