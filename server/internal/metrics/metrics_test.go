package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func parse(t *testing.T, text string) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse exposition: %v\n%s", err, text)
	}
	return mfs
}

func counterValue(mf *dto.MetricFamily, label string) float64 {
	if mf == nil {
		return -1
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetValue() == label {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func TestRegistry_WriteText(t *testing.T) {
	r := New()
	r.Notification(OutcomeSent)
	r.Notification(OutcomeSent)
	r.Notification(OutcomeFailed)
	r.DeliveryError("transport")
	r.TemplateError("custom_message")
	r.ObserveDelivery(250 * time.Millisecond)
	r.ObserveDelivery(750 * time.Millisecond)

	var buf bytes.Buffer
	if err := r.WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	mfs := parse(t, buf.String())

	if got := counterValue(mfs[NotificationsTotal], OutcomeSent); got != 2 {
		t.Errorf("sent = %v, want 2", got)
	}
	if got := counterValue(mfs[NotificationsTotal], OutcomeFailed); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := counterValue(mfs[DeliveryErrorsTotal], "transport"); got != 1 {
		t.Errorf("transport errors = %v, want 1", got)
	}
	if got := counterValue(mfs[TemplateErrorsTotal], "custom_message"); got != 1 {
		t.Errorf("template errors = %v, want 1", got)
	}

	sum := mfs[DeliveryDuration].GetMetric()[0].GetSummary()
	if sum.GetSampleCount() != 2 {
		t.Errorf("duration count = %d, want 2", sum.GetSampleCount())
	}
	if sum.GetSampleSum() != 1.0 {
		t.Errorf("duration sum = %v, want 1.0", sum.GetSampleSum())
	}
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	r.Notification(OutcomeSent)
	r.DeliveryError("transport")
	r.TemplateError("backlog_item_message")
	r.ObserveDelivery(time.Second)
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.Notification(OutcomeSent)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `slacknotify_notifications_total{outcome="sent"} 1`) {
		t.Errorf("body missing sent counter:\n%s", rec.Body.String())
	}
}

func TestRegistry_EmptyFamiliesOmitted(t *testing.T) {
	var buf bytes.Buffer
	if err := New().WriteText(&buf); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, NotificationsTotal) {
		t.Errorf("empty counter family should be omitted:\n%s", out)
	}
	if !strings.Contains(out, DeliveryDuration+"_count 0") {
		t.Errorf("summary should always be present:\n%s", out)
	}
}
