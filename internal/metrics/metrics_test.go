package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestLoginsTotal_Increments(t *testing.T) {
	LoginsTotal.Reset()

	LoginsTotal.WithLabelValues("success").Inc()
	LoginsTotal.WithLabelValues("success").Inc()
	LoginsTotal.WithLabelValues("blocked").Inc()

	m := &dto.Metric{}
	counter, err := LoginsTotal.GetMetricWithLabelValues("success")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2, got %f", m.Counter.GetValue())
	}
}

func TestGateDenials_LabelPerControl(t *testing.T) {
	GateDenialsTotal.Reset()

	GateDenialsTotal.WithLabelValues("ip_blacklist").Inc()

	m := &dto.Metric{}
	counter, err := GateDenialsTotal.GetMetricWithLabelValues("ip_blacklist")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1, got %f", m.Counter.GetValue())
	}
}

func TestItoa(t *testing.T) {
	tests := map[int]string{200: "200", 404: "404", 503: "503"}
	for in, want := range tests {
		if got := itoa(in); got != want {
			t.Errorf("itoa(%d) = %q, want %q", in, got, want)
		}
	}
}
