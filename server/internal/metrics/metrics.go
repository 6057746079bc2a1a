package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Exposed metric names.
const (
	NotificationsTotal  = "slacknotify_notifications_total"
	DeliveryErrorsTotal = "slacknotify_delivery_errors_total"
	TemplateErrorsTotal = "slacknotify_template_errors_total"
	DeliveryDuration    = "slacknotify_delivery_duration_seconds"
)

// Outcome label values for NotificationsTotal.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Registry is a small fixed set of counters. Safe for concurrent use.
// A nil *Registry accepts every call and records nothing.
type Registry struct {
	mu            sync.Mutex
	notifications map[string]float64 // outcome -> count
	deliveryErrs  map[string]float64 // kind -> count
	templateErrs  map[string]float64 // template -> count
	durationSum   float64
	durationCount uint64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		notifications: make(map[string]float64),
		deliveryErrs:  make(map[string]float64),
		templateErrs:  make(map[string]float64),
	}
}

// Notification counts one finished notification with the given outcome.
func (r *Registry) Notification(outcome string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.notifications[outcome]++
	r.mu.Unlock()
}

// DeliveryError counts one failed delivery of the given kind.
func (r *Registry) DeliveryError(kind string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.deliveryErrs[kind]++
	r.mu.Unlock()
}

// TemplateError counts one template that failed to render.
func (r *Registry) TemplateError(template string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.templateErrs[template]++
	r.mu.Unlock()
}

// ObserveDelivery records the duration of one webhook POST.
func (r *Registry) ObserveDelivery(d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.durationSum += d.Seconds()
	r.durationCount++
	r.mu.Unlock()
}

// Families returns the current values as Prometheus metric families, sorted
// by name.
func (r *Registry) Families() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := []*dto.MetricFamily{
		{
			Name: proto.String(DeliveryDuration),
			Help: proto.String("Duration of webhook POST requests."),
			Type: dto.MetricType_SUMMARY.Enum(),
			Metric: []*dto.Metric{{
				Summary: &dto.Summary{
					SampleCount: proto.Uint64(r.durationCount),
					SampleSum:   proto.Float64(r.durationSum),
				},
			}},
		},
		counterFamily(DeliveryErrorsTotal, "Failed webhook deliveries by kind.", "kind", r.deliveryErrs),
		counterFamily(NotificationsTotal, "Executed notifications by outcome.", "outcome", r.notifications),
		counterFamily(TemplateErrorsTotal, "Message templates that failed to render.", "template", r.templateErrs),
	}

	// The text encoder rejects families without samples.
	fams := all[:0]
	for _, mf := range all {
		if len(mf.Metric) > 0 {
			fams = append(fams, mf)
		}
	}
	return fams
}

// WriteText encodes all families to w in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range r.Families() {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the registry at a /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := r.WriteText(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func counterFamily(name, help, label string, values map[string]float64) *dto.MetricFamily {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: proto.String(label), Value: proto.String(k)}},
			Counter: &dto.Counter{Value: proto.Float64(values[k])},
		})
	}
	return mf
}
