package incident

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/argus/internal/alert"
	"github.com/linnemanlabs/argus/internal/correlate"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu        sync.Mutex
	alerts    []*alert.Record
	incidents map[string]*Incident
	order     []string

	insertErr  error
	listErr    error
	replaceErr error

	replaceCalls int
	replaceGate  chan struct{} // if set, ReplaceIncidents blocks until closed
}

func newMockStore() *mockStore {
	return &mockStore{incidents: make(map[string]*Incident)}
}

func (m *mockStore) InsertAlert(_ context.Context, rec *alert.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	cp := *rec
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *mockStore) ListAlerts(_ context.Context) ([]*alert.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*alert.Record, 0, len(m.alerts))
	for _, a := range m.alerts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) ListAlertsByIncident(_ context.Context, incidentID string) ([]*alert.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*alert.Record
	for _, a := range m.alerts {
		if a.IncidentID == incidentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) ReplaceIncidents(_ context.Context, incidents []*Incident) error {
	if m.replaceGate != nil {
		<-m.replaceGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.incidents = make(map[string]*Incident, len(incidents))
	m.order = m.order[:0]
	for _, a := range m.alerts {
		a.IncidentID = ""
	}
	for _, inc := range incidents {
		cp := *inc
		m.incidents[inc.ID] = &cp
		m.order = append(m.order, inc.ID)
		for _, id := range inc.AlertIDs {
			for _, a := range m.alerts {
				if a.ID == id {
					a.IncidentID = inc.ID
				}
			}
		}
	}
	return nil
}

func (m *mockStore) ListIncidents(_ context.Context) ([]*Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Incident, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.incidents[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) GetIncident(_ context.Context, id string) (*Incident, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

func (m *mockStore) UpdateIncident(_ context.Context, id string, upd *Update) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return false, nil
	}
	if upd.Status != nil {
		inc.Status = *upd.Status
	}
	if upd.Verdict != nil {
		inc.Verdict = *upd.Verdict
	}
	if upd.AppendNote != "" {
		if inc.AnalystNotes != "" {
			inc.AnalystNotes += "\n"
		}
		inc.AnalystNotes += upd.AppendNote
	}
	return true, nil
}

// mockNotifier records notified incidents.
type mockNotifier struct {
	mu   sync.Mutex
	got  []string
	err  error
	done chan struct{}
}

func (m *mockNotifier) Notify(_ context.Context, inc *Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, inc.ID)
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	return m.err
}

func newTestService(store Store, notifier Notifier) *Service {
	return NewService(
		store,
		correlate.New(correlate.Config{}),
		log.Nop(),
		NewMetrics(prometheus.NewRegistry()),
		notifier,
	)
}

func seedAlerts(t *testing.T, store *mockStore, recs ...*alert.Record) {
	t.Helper()
	for i, r := range recs {
		if r.ID == "" {
			r.ID = "a" + string(rune('0'+i))
		}
		if err := store.InsertAlert(context.Background(), r); err != nil {
			t.Fatalf("seed alert: %v", err)
		}
	}
}

var base = time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)

func rec(min int, source, alertType, severity, user string) *alert.Record {
	return &alert.Record{
		TS:        base.Add(time.Duration(min) * time.Minute),
		Source:    source,
		AlertType: alertType,
		Severity:  severity,
		User:      user,
		AssetTier: alert.TierNormal,
	}
}

func TestIngest(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(store, nil)

	err := svc.Ingest(context.Background(), rec(0, "okta", "impossible_travel", alert.SeverityHigh, "mwaters"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(store.alerts) != 1 {
		t.Errorf("stored alerts = %d, want 1", len(store.alerts))
	}
}

func TestIngest_RejectsInvalid(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(store, nil)

	err := svc.Ingest(context.Background(), &alert.Record{Source: "okta"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(store.alerts) != 0 {
		t.Error("invalid alert must not be stored")
	}
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store,
		rec(0, "okta", "multiple_failed_logins", alert.SeverityMedium, "mwaters"),
		rec(5, "okta", "impossible_travel", alert.SeverityHigh, "mwaters"),
		rec(120, "zeek", "c2_outbound", alert.SeverityCritical, "svc-web"),
	)
	svc := newTestService(store, nil)

	res, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if res.IncidentsCreated != 2 || res.Clusters != 2 || res.Alerts != 3 {
		t.Errorf("result = %+v, want 2 incidents from 2 clusters over 3 alerts", res)
	}

	incidents, err := svc.store.ListIncidents(context.Background())
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}
	if len(incidents) != 2 {
		t.Fatalf("stored incidents = %d, want 2", len(incidents))
	}
	for _, inc := range incidents {
		if inc.ID == "" {
			t.Error("incident missing ID")
		}
		if inc.Status != StatusOpen || inc.Verdict != VerdictUnknown {
			t.Errorf("new incident status/verdict = %s/%s, want open/unknown", inc.Status, inc.Verdict)
		}
		if inc.Title == "" || inc.Summary == "" {
			t.Error("incident missing title or summary")
		}
		if inc.Confidence < 0.05 || inc.Confidence > 0.98 {
			t.Errorf("confidence = %v, out of range", inc.Confidence)
		}
		if inc.RiskScore < 0 || inc.RiskScore > 100 {
			t.Errorf("risk = %v, out of range", inc.RiskScore)
		}
		if len(inc.AlertIDs) == 0 {
			t.Error("incident has no linked alerts")
		}
	}
}

func TestRebuild_ReplacesPreviousIncidents(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store, rec(0, "okta", "impossible_travel", alert.SeverityHigh, "mwaters"))
	svc := newTestService(store, nil)

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}
	first, _ := store.ListIncidents(context.Background())

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	second, _ := store.ListIncidents(context.Background())

	if len(second) != 1 {
		t.Fatalf("incidents after second rebuild = %d, want 1", len(second))
	}
	if second[0].ID == first[0].ID {
		t.Error("rebuild must create fresh incidents, not reuse old IDs")
	}
	if store.replaceCalls != 2 {
		t.Errorf("ReplaceIncidents calls = %d, want 2", store.replaceCalls)
	}
}

func TestRebuild_DeterministicScores(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store,
		rec(0, "okta", "multiple_failed_logins", alert.SeverityMedium, "mwaters"),
		rec(5, "cloudtrail", "iam_key_created", alert.SeverityHigh, "mwaters"),
	)
	svc := newTestService(store, nil)

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	first, _ := store.ListIncidents(context.Background())
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	second, _ := store.ListIncidents(context.Background())

	if first[0].RiskScore != second[0].RiskScore || first[0].Confidence != second[0].Confidence {
		t.Errorf("scores changed across rebuilds: %v/%v then %v/%v",
			first[0].RiskScore, first[0].Confidence, second[0].RiskScore, second[0].Confidence)
	}
	if first[0].Summary != second[0].Summary {
		t.Error("summary changed across rebuilds of the same alert set")
	}
}

func TestRebuild_ConcurrentRejected(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store, rec(0, "okta", "impossible_travel", alert.SeverityHigh, "mwaters"))
	store.replaceGate = make(chan struct{})
	svc := newTestService(store, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Rebuild(context.Background())
		firstDone <- err
	}()

	// wait until the first rebuild is blocked inside the store
	deadline := time.After(2 * time.Second)
	for !svc.rebuilding.Load() {
		select {
		case <-deadline:
			t.Fatal("first rebuild never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := svc.Rebuild(context.Background()); !errors.Is(err, ErrRebuildInProgress) {
		t.Errorf("concurrent Rebuild error = %v, want ErrRebuildInProgress", err)
	}

	close(store.replaceGate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}

	// gate released, a new rebuild must be allowed again
	store.replaceGate = nil
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild after release: %v", err)
	}
}

func TestRebuild_StoreErrors(t *testing.T) {
	t.Parallel()

	t.Run("list fails", func(t *testing.T) {
		t.Parallel()
		store := newMockStore()
		store.listErr = errors.New("db down")
		svc := newTestService(store, nil)
		if _, err := svc.Rebuild(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("replace fails", func(t *testing.T) {
		t.Parallel()
		store := newMockStore()
		seedAlerts(t, store, rec(0, "okta", "impossible_travel", alert.SeverityHigh, "mwaters"))
		store.replaceErr = errors.New("db down")
		svc := newTestService(store, nil)
		if _, err := svc.Rebuild(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		// the failure must release the rebuild lock
		store.replaceErr = nil
		if _, err := svc.Rebuild(context.Background()); err != nil {
			t.Fatalf("Rebuild after failure: %v", err)
		}
	})
}

func TestRebuild_NotifiesHighSeverity(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	// two critical alerts across two sources score well above the high threshold
	seedAlerts(t, store,
		rec(0, "cloudtrail", "s3_public", alert.SeverityCritical, "mwaters"),
		rec(2, "okta", "impossible_travel", alert.SeverityCritical, "mwaters"),
	)
	notifier := &mockNotifier{done: make(chan struct{})}
	done := notifier.done
	svc := newTestService(store, notifier)

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called for a high severity incident")
	}
}

func TestRebuild_SkipsNotifyForLowSeverity(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store, rec(0, "okta", "multiple_failed_logins", alert.SeverityLow, "svc-backup"))
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)

	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.got) != 0 {
		t.Errorf("notified %v for a low severity incident", notifier.got)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store, rec(0, "okta", "impossible_travel", alert.SeverityHigh, "mwaters"))
	svc := newTestService(store, nil)
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	incidents, _ := store.ListIncidents(context.Background())

	det, ok, err := svc.Get(context.Background(), incidents[0].ID)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(det.Alerts) != 1 {
		t.Errorf("detail alerts = %d, want 1", len(det.Alerts))
	}

	_, ok, err = svc.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if ok {
		t.Error("Get(missing) reported found")
	}
}

func TestUpdate_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil)

	bad := Status("escalated")
	_, err := svc.Update(context.Background(), "any", &Update{Status: &bad})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Field != "status" {
		t.Errorf("Field = %q, want status", verr.Field)
	}
}

func TestSimulateRemediate(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store, rec(0, "okta", "impossible_travel", alert.SeverityHigh, "mwaters"))
	svc := newTestService(store, nil)
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	incidents, _ := store.ListIncidents(context.Background())
	id := incidents[0].ID

	ok, err := svc.SimulateRemediate(context.Background(), id, "force_password_reset")
	if err != nil || !ok {
		t.Fatalf("SimulateRemediate: ok=%v err=%v", ok, err)
	}

	inc, _, _ := store.GetIncident(context.Background(), id)
	if inc.Status != StatusTriaged {
		t.Errorf("status = %s, want triaged", inc.Status)
	}
	if !strings.Contains(inc.AnalystNotes, "[SIMULATED ACTION] force_password_reset executed.") {
		t.Errorf("notes = %q, missing simulated action line", inc.AnalystNotes)
	}

	// a second action on an already triaged incident keeps the status
	if _, err := svc.SimulateRemediate(context.Background(), id, "revoke_sessions"); err != nil {
		t.Fatalf("SimulateRemediate: %v", err)
	}
	inc, _, _ = store.GetIncident(context.Background(), id)
	if inc.Status != StatusTriaged {
		t.Errorf("status after second action = %s, want triaged", inc.Status)
	}
	if !strings.Contains(inc.AnalystNotes, "revoke_sessions executed.") {
		t.Errorf("notes = %q, missing second action", inc.AnalystNotes)
	}
}

func TestSimulateRemediate_MissingIncident(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMockStore(), nil)
	ok, err := svc.SimulateRemediate(context.Background(), "missing", "block_ip")
	if err != nil {
		t.Fatalf("SimulateRemediate: %v", err)
	}
	if ok {
		t.Error("expected not found")
	}
}

func TestPlaybook(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store,
		rec(0, "zeek", "c2_outbound", alert.SeverityHigh, "svc-web"),
		rec(3, "crowdstrike", "suspicious_powershell", alert.SeverityHigh, "svc-web"),
	)
	svc := newTestService(store, nil)
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	incidents, _ := store.ListIncidents(context.Background())

	steps, ok, err := svc.Playbook(context.Background(), incidents[0].ID)
	if err != nil || !ok {
		t.Fatalf("Playbook: ok=%v err=%v", ok, err)
	}
	// 3 c2 steps + 3 powershell steps, isolate_host shared
	if len(steps) != 5 {
		t.Errorf("steps = %d, want 5", len(steps))
	}
}

func TestQuality(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	seedAlerts(t, store,
		rec(0, "zeek", "c2_outbound", alert.SeverityCritical, "svc-web"),
		rec(3, "guardduty", "c2_outbound", alert.SeverityHigh, "svc-web"),
	)
	svc := newTestService(store, nil)
	if _, err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	incidents, _ := store.ListIncidents(context.Background())

	q, ok, err := svc.Quality(context.Background(), incidents[0].ID)
	if err != nil || !ok {
		t.Fatalf("Quality: ok=%v err=%v", ok, err)
	}
	if q.Score <= 0 || q.Score > 1 {
		t.Errorf("quality score = %v, out of (0, 1]", q.Score)
	}
	if len(q.NextSteps) == 0 {
		t.Error("quality result missing next steps")
	}
}

func TestBuildIncident_MitreFromSortedTypes(t *testing.T) {
	t.Parallel()

	cl := &correlate.Cluster{Alerts: []*alert.Record{
		{ID: "a1", AlertType: "s3_public", Severity: alert.SeverityHigh, Source: "cloudtrail"},
		{ID: "a2", AlertType: "iam_key_created", Severity: alert.SeverityHigh, Source: "cloudtrail"},
	}}
	inc := buildIncident(cl)

	// sorted types: iam_key_created before s3_public
	want := []string{"T1098.001", "T1078.004", "T1530"}
	if len(inc.Mitre) != len(want) {
		t.Fatalf("Mitre = %v, want %v", inc.Mitre, want)
	}
	for i := range want {
		if inc.Mitre[i] != want[i] {
			t.Errorf("Mitre[%d] = %q, want %q", i, inc.Mitre[i], want[i])
		}
	}
	if len(inc.AlertIDs) != 2 || inc.AlertIDs[0] != "a1" {
		t.Errorf("AlertIDs = %v, want cluster order", inc.AlertIDs)
	}
}
