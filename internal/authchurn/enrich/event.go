package enrich

import (
	"time"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/parsers"
)

// UnknownMount labels logins whose path has nothing before "/login".
const UnknownMount = "(unknown-mount)"

// LoginEvent is one classified Kubernetes login attempt.
type LoginEvent struct {
	// Seq is the global input position of the line the event came from.
	// Lower means earlier in the input.
	Seq  uint64
	Time time.Time

	// MountKey identifies the mount (accessor, or path prefix when the
	// accessor is absent). MountLabel is the readable form.
	MountKey   string
	MountLabel string

	Success bool
	// Request is set for request records on a login path.
	Request bool

	EntityID      string
	WorkloadLabel string
}

// Outcome says what Build did with a record.
type Outcome int

const (
	// NotLogin: the record is not a Kubernetes login.
	NotLogin Outcome = iota
	// Ignored: a login request record while request records are not
	// counted as failures.
	Ignored
	// Filtered: a login rejected by the configured filters.
	Filtered
	// Accepted: a login to aggregate.
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case NotLogin:
		return "not_login"
	case Ignored:
		return "ignored"
	case Filtered:
		return "filtered"
	case Accepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Builder turns normalized records into login events.
type Builder struct {
	classifier              *parsers.Classifier
	labels                  LabelOptions
	lookups                 *Lookups
	failuresIncludeRequests bool
	filter                  EventFilter
}

type BuilderOption func(*Builder)

func WithLabelOptions(o LabelOptions) BuilderOption {
	return func(b *Builder) { b.labels = o }
}

func WithLookups(l *Lookups) BuilderOption {
	return func(b *Builder) { b.lookups = l }
}

// WithRequestFailures controls whether login request records count as
// failures. Enabled by default.
func WithRequestFailures(on bool) BuilderOption {
	return func(b *Builder) { b.failuresIncludeRequests = on }
}

// WithFilters keeps only events accepted by every filter.
func WithFilters(filters ...EventFilter) BuilderOption {
	return func(b *Builder) {
		if len(filters) > 0 {
			b.filter = matchAll(filters)
		}
	}
}

// NewBuilder returns a builder using c, or the default classifier when c is nil.
func NewBuilder(c *parsers.Classifier, opts ...BuilderOption) *Builder {
	if c == nil {
		c = parsers.NewClassifier(nil, nil, parsers.DefaultSuccessPolicy())
	}
	b := &Builder{
		classifier:              c,
		labels:                  DefaultLabelOptions(),
		failuresIncludeRequests: true,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// NewBuilderFromConfig wires classifier, labels and filters from cfg.
func NewBuilderFromConfig(cfg *config.Config, l *Lookups) *Builder {
	// config defaults always fill both lists, so nil here means emptied
	c := parsers.NewClassifier(
		nonNil(cfg.Classify.LoginKeywords),
		nonNil(cfg.Classify.MountTypes),
		parsers.SuccessPolicy{MissingStatusIsSuccess: cfg.Classify.MissingStatusIsSuccess},
	)

	var filters []EventFilter
	if len(cfg.Filters.Mounts) > 0 {
		filters = append(filters, FilterByMount(cfg.Filters.Mounts))
	}
	if len(cfg.Filters.Namespaces) > 0 {
		filters = append(filters, FilterByNamespace(cfg.Filters.Namespaces))
	}

	return NewBuilder(c,
		WithLabelOptions(LabelOptions{DisplayNameFallback: cfg.Label.DisplayNameFallback}),
		WithLookups(l),
		WithRequestFailures(cfg.Classify.FailuresIncludeRequests),
		WithFilters(filters...),
	)
}

// Build classifies rec. The event is only meaningful when the outcome is
// Accepted or Filtered.
func (b *Builder) Build(rec *parsers.Record, seq uint64) (LoginEvent, Outcome) {
	if !b.classifier.IsLoginOperation(rec.Path, rec.MountType) {
		return LoginEvent{}, NotLogin
	}

	success := b.classifier.IsSuccessfulResponse(rec)
	isRequest := rec.Type == parsers.TypeRequest
	if !success && rec.Type != parsers.TypeResponse && !b.failuresIncludeRequests {
		return LoginEvent{}, Ignored
	}

	base := parsers.MountBase(rec.Path)
	key := rec.MountAccessor
	if key == "" {
		key = base
	}
	if key == "" {
		key = UnknownMount
	}
	label := base
	if l, ok := b.lookups.MountLabel(rec.MountAccessor); ok {
		label = l
	}
	if label == "" {
		label = UnknownMount
	}

	ev := LoginEvent{
		Seq:        seq,
		Time:       rec.Time,
		MountKey:   key,
		MountLabel: label,
		Success:    success,
		Request:    isRequest,
	}
	if success {
		ev.EntityID = rec.EntityID
	}
	ev.WorkloadLabel, _ = WorkloadLabel(rec.Metadata, rec.DisplayName, b.labels)

	if b.filter != nil && !b.filter(ev) {
		return ev, Filtered
	}
	return ev, Accepted
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
