package telemetry

import (
	"context"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelController   = "controller"
	ProfilingLabelRoute        = "route"
	ProfilingLabelMethod       = "method"
	ProfilingLabelTenantID     = "tenant_id"
	ProfilingLabelOperation    = "operation"
	ProfilingLabelSourceModule = "source_module"
)

// MaxLabelValueLength caps label values
const MaxLabelValueLength = 128

// Posting engine operations used as profiling labels
const (
	OperationProcessEvent = "process_event"
	OperationPostEntry    = "post_entry"
	OperationVoidEntry    = "void_entry"
	OperationRemapPreview = "remap_preview"
	OperationRemapExecute = "remap_execute"
)

// per-request ids would blow up pyroscope's series count
var highCardinalityLabels = map[string]bool{
	"request_id":       true,
	"event_id":         true,
	"trace_id":         true,
	"span_id":          true,
	"journal_entry_id": true,
	"tender_id":        true,
}

// WithProfilingLabels runs fn with pprof labels attached, so its samples can
// be filtered in pyroscope. Empty and per-request labels are dropped.
//
//	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationPostEntry, "pos"), func(c context.Context) {
//		entry, err = s.post(c, tenantID, in)
//	})
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels flattens labels into sorted key/value pairs with snake_case
// keys and truncated values.
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if len(v) > MaxLabelValueLength {
			v = v[:MaxLabelValueLength]
		}
		pairs = append(pairs, key, v)
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HTTPRequestLabels labels an HTTP request. Empty arguments are left out.
func HTTPRequestLabels(controller, route, method, tenantID string) map[string]string {
	labels := make(map[string]string, 4)
	for k, v := range map[string]string{
		ProfilingLabelController: controller,
		ProfilingLabelRoute:      route,
		ProfilingLabelMethod:     method,
		ProfilingLabelTenantID:   tenantID,
	} {
		if v != "" {
			labels[k] = v
		}
	}
	return labels
}

// LedgerOperationLabels labels a posting engine operation with its source module
func LedgerOperationLabels(operation, sourceModule string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if sourceModule != "" {
		labels[ProfilingLabelSourceModule] = sourceModule
	}
	return labels
}
