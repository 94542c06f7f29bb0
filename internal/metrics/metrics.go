// Package metrics holds the process-wide prometheus collectors of the scan
// loop and the LED subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyglow_scan_ticks_total",
		Help: "Scan loop iterations.",
	})
	PagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyglow_led_pages_sent_total",
		Help: "Pages handed to the LED driver.",
	})
	PageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyglow_led_page_errors_total",
		Help: "Pages the LED driver failed to transmit.",
	})
	BrightnessRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyglow_brightness_rejected_total",
		Help: "Brightness adjustments dropped by the rate limiter.",
	})
	Invocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyglow_capability_invocations_total",
		Help: "Capability action invocations by name.",
	}, []string{"capability"})
	CurrentBudget = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyglow_current_budget_ma",
		Help: "Last current budget reported by the host (mA).",
	})
)
