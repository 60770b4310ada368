package metrics_test

import (
	"io"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/cipherbob/pkg/metrics"
)

var _ = Describe("Collector", func() {
	var collector *metrics.Collector

	BeforeEach(func() {
		collector = metrics.NewCollector()
	})

	It("counts requests per outcome", func() {
		collector.ObserveRequest(metrics.OutcomeOK)
		collector.ObserveRequest(metrics.OutcomeOK)
		collector.ObserveRequest(metrics.OutcomeForbidden)

		count, err := testutil.GatherAndCount(collector.Registry(), "cipherbob_gateway_requests_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})

	It("records upstream latency", func() {
		collector.ObserveUpstream(300 * time.Millisecond)

		count, err := testutil.GatherAndCount(collector.Registry(), "cipherbob_gateway_upstream_duration_seconds")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("exposes metrics over HTTP", func() {
		collector.ObserveRequest(metrics.OutcomeNotFound)

		rec := httptest.NewRecorder()
		collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		Expect(rec.Code).To(Equal(200))
		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`cipherbob_gateway_requests_total{outcome="not_found"} 1`))
	})
})
