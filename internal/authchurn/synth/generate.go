// Package synth writes synthetic Vault audit logs for demos, tests and
// benchmarks.
package synth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Stats reports what Generate wrote. Logins count response records only.
type Stats struct {
	Lines          int `json:"lines"`
	Requests       int `json:"requests"`
	Successes      int `json:"successes"`
	Failures       int `json:"failures"`
	Entities       int `json:"entities"`
	NoiseRecords   int `json:"noise_records"`
	MalformedLines int `json:"malformed_lines"`
}

type auditAuth struct {
	ClientToken string            `json:"client_token,omitempty"`
	Accessor    string            `json:"accessor,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	EntityID    string            `json:"entity_id,omitempty"`
	Policies    []string          `json:"policies,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type auditRequest struct {
	ID            string `json:"id"`
	Operation     string `json:"operation"`
	MountType     string `json:"mount_type,omitempty"`
	MountAccessor string `json:"mount_accessor,omitempty"`
	Path          string `json:"path"`
	RemoteAddress string `json:"remote_address"`
}

type auditResponse struct {
	Auth      *auditAuth `json:"auth,omitempty"`
	MountType string     `json:"mount_type,omitempty"`
}

type auditEntry struct {
	Time     string         `json:"time"`
	Type     string         `json:"type"`
	Auth     *auditAuth     `json:"auth,omitempty"`
	Request  auditRequest   `json:"request"`
	Response *auditResponse `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// login is one planned login attempt.
type login struct {
	mount    *MountSpec
	ns, sa   string
	entityID string
	fail     bool
}

// Generate writes the scenario's audit log to w.
func Generate(w io.Writer, sc Scenario) (Stats, error) {
	var st Stats
	if err := sc.Validate(); err != nil {
		return st, err
	}
	start, err := sc.startTime()
	if err != nil {
		return st, err
	}
	step := time.Duration(sc.StepMillis) * time.Millisecond
	if step <= 0 {
		step = time.Second
	}

	f := gofakeit.New(sc.Seed)
	sc.Mounts = append([]MountSpec(nil), sc.Mounts...)
	plan, entities := planLogins(f, &sc)
	st.Entities = entities

	// spread noise and malformed lines over the login sequence
	extras := make(map[int][]string)
	for i := 0; i < sc.NoiseRecords; i++ {
		pos := f.Number(0, len(plan))
		extras[pos] = append(extras[pos], "noise")
	}
	for i := 0; i < sc.MalformedLines; i++ {
		pos := f.Number(0, len(plan))
		extras[pos] = append(extras[pos], "malformed")
	}

	bw := bufio.NewWriter(w)
	now := start
	emit := func(e auditEntry) error {
		e.Time = now.Format(time.RFC3339Nano)
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if f.Float64() < sc.PrefixRatio {
			if _, err := fmt.Fprintf(bw, "%s stdout F ", now.Format(time.RFC3339Nano)); err != nil {
				return err
			}
		}
		st.Lines++
		_, err = fmt.Fprintf(bw, "%s\n", b)
		return err
	}
	writeExtras := func(pos int) error {
		for _, kind := range extras[pos] {
			switch kind {
			case "noise":
				if err := emit(noiseEntry(f)); err != nil {
					return err
				}
				st.NoiseRecords++
			case "malformed":
				if _, err := fmt.Fprintf(bw, "%s\n", malformedLine(f)); err != nil {
					return err
				}
				st.Lines++
				st.MalformedLines++
			}
		}
		return nil
	}

	for i, l := range plan {
		if err := writeExtras(i); err != nil {
			return st, err
		}
		req := loginRequest(f, l)
		if sc.emitRequests() {
			if err := emit(auditEntry{Type: "request", Request: req}); err != nil {
				return st, err
			}
			st.Requests++
		}
		if err := emit(loginResponse(f, l, req)); err != nil {
			return st, err
		}
		if l.fail {
			st.Failures++
		} else {
			st.Successes++
		}
		now = now.Add(step)
	}
	if err := writeExtras(len(plan)); err != nil {
		return st, err
	}
	return st, bw.Flush()
}

// planLogins expands every workload into login attempts and interleaves the
// workloads round-robin. It returns the plan and the number of distinct
// (mount, entity) pairs that log in successfully.
func planLogins(f *gofakeit.Faker, sc *Scenario) ([]login, int) {
	var queues [][]login
	entities := 0

	for mi := range sc.Mounts {
		m := &sc.Mounts[mi]
		if m.Accessor == "" {
			m.Accessor = fmt.Sprintf("auth_%s_%08x", m.Type, f.Uint32())
		}
		for _, wl := range m.Workloads {
			ns, sa := wl.Namespace, wl.ServiceAccount
			if ns == "" && sa == "" {
				ns, sa = RandomNamespace(f), RandomServiceAccount(f)
			}

			var ids []string
			switch wl.Pattern {
			case PatternStable:
				for i := 0; i < wl.Entities; i++ {
					ids = append(ids, f.UUID())
				}
			case PatternChatty:
				ids = []string{f.UUID()}
			}

			var q []login
			used := make(map[string]struct{})
			for i := 0; i < wl.Logins; i++ {
				var id string
				if wl.Pattern == PatternChurn {
					id = f.UUID()
				} else {
					id = ids[i%len(ids)]
				}
				used[id] = struct{}{}
				q = append(q, login{mount: m, ns: ns, sa: sa, entityID: id})
			}
			for i := 0; i < wl.Failures; i++ {
				q = append(q, login{mount: m, ns: ns, sa: sa, fail: true})
			}
			entities += len(used)
			queues = append(queues, q)
		}
	}

	var plan []login
	for remaining := true; remaining; {
		remaining = false
		for i := range queues {
			if len(queues[i]) == 0 {
				continue
			}
			plan = append(plan, queues[i][0])
			queues[i] = queues[i][1:]
			remaining = true
		}
	}
	return plan, entities
}

func loginPath(m *MountSpec) string {
	return "auth/" + strings.Trim(m.Path, "/") + "/login"
}

func loginRequest(f *gofakeit.Faker, l login) auditRequest {
	return auditRequest{
		ID:            f.UUID(),
		Operation:     "update",
		MountType:     l.mount.Type,
		MountAccessor: l.mount.Accessor,
		Path:          loginPath(l.mount),
		RemoteAddress: f.IPv4Address(),
	}
}

func loginResponse(f *gofakeit.Faker, l login, req auditRequest) auditEntry {
	e := auditEntry{Type: "response", Request: req}
	if l.fail {
		e.Error = RandomFailure(f)
		return e
	}
	auth := &auditAuth{
		ClientToken: "hmac-sha256:" + strings.ReplaceAll(f.UUID(), "-", ""),
		Accessor:    "hmac-sha256:" + strings.ReplaceAll(f.UUID(), "-", ""),
		DisplayName: fmt.Sprintf("%s-%s-%s", strings.Trim(l.mount.Path, "/"), l.ns, l.sa),
		EntityID:    l.entityID,
		Policies:    []string{"default", l.ns + "-read"},
		Metadata: map[string]string{
			"role":                        l.ns + "-" + l.sa,
			"service_account_name":        l.sa,
			"service_account_namespace":   l.ns,
			"service_account_uid":         f.UUID(),
			"service_account_secret_name": "",
		},
	}
	e.Auth = auth
	e.Response = &auditResponse{Auth: auth, MountType: l.mount.Type}
	return e
}

func noiseEntry(f *gofakeit.Faker) auditEntry {
	return auditEntry{
		Type: f.RandomString([]string{"request", "response"}),
		Auth: &auditAuth{DisplayName: "token", EntityID: f.UUID()},
		Request: auditRequest{
			ID:            f.UUID(),
			Operation:     "read",
			MountType:     "kv",
			Path:          "secret/data/" + f.Word() + "/" + f.Word(),
			RemoteAddress: f.IPv4Address(),
		},
	}
}

func malformedLine(f *gofakeit.Faker) string {
	switch f.Number(0, 2) {
	case 0:
		return `{"type":"response","request":{"path":"auth/kubernetes/lo`
	case 1:
		return "vault: " + f.Sentence(6)
	default:
		return ""
	}
}
