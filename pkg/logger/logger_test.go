package logger_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/cipherbob/pkg/logger"
)

var _ = Describe("Logger", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("drops debug entries by default", func() {
		l := logger.NewLoggerTo(buf, false)
		l.Debug("hidden")
		l.Info("shown", zap.String("path", "/api/chat"))
		Expect(l.Sync()).To(Succeed())

		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring("shown"))
		Expect(buf.String()).To(ContainSubstring("/api/chat"))
	})

	It("emits debug entries when debug is enabled", func() {
		l := logger.NewLoggerTo(buf, true)
		l.Debug("visible")
		Expect(l.Sync()).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("visible"))
	})
})

var _ = Describe("Mask", func() {
	It("returns empty for an empty secret", func() {
		Expect(logger.Mask("")).To(BeEmpty())
	})

	It("fully masks short secrets", func() {
		Expect(logger.Mask("abcd1234")).To(Equal("***"))
	})

	It("keeps only the last four characters of long secrets", func() {
		masked := logger.Mask("sk-ant-REDACTED")
		Expect(masked).To(Equal("********WXYZ"))
		Expect(masked).NotTo(ContainSubstring("verysecret"))
	})
})
