package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/extractor"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/headers"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/ingestion/identity"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/talent"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ingestion.DocumentChangedEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e.Value.(ingestion.DocumentChangedEvent))
	return nil
}

type fixture struct {
	pipeline  *Pipeline
	store     *store.Memory
	publisher *recordingPublisher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v, err := vocabulary.Default()
	require.NoError(t, err)
	reg := vocabulary.NewStaticRegistry(v)
	mapper, err := headers.NewMapper(nil)
	require.NoError(t, err)

	mem := store.NewMemory()
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	p := New(Deps{
		Mapper:     mapper,
		Registry:   reg,
		Extractor:  extractor.New(reg, extractor.DefaultOptions()),
		Reconciler: identity.NewReconciler(mem, 3, identity.WithBackoff(time.Millisecond)),
		Store:      mem,
		Publisher:  pub,
		Metrics:    m,
	}, Options{BatchConcurrency: 2, ItemTimeout: 5 * time.Second, MaxBatchSize: 10})
	return &fixture{pipeline: p, store: mem, publisher: pub, metrics: m}
}

func secretaryRow() map[string]string {
	return map[string]string{
		"מספר משרה":    "405690",
		"שם משרה":      "מזכירה",
		"שם ישוב":      "תל אביב",
		"תיאור תפקיד":  "מענה טלפוני ותיאום פגישות. לפרטים: 050-1234567",
		"דרישות תפקיד": "ניסיון בעבודה עם אקסל - חובה\nאנגלית ברמה טובה",
		"טווח שכר מוצע": "9000-10000",
	}
}

func TestIngestJobRowScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.pipeline.Ingest(ctx, "t1", talent.KindJob, &ingestion.IngestRequest{Fields: secretaryRow()})
	require.NoError(t, err)
	assert.Equal(t, string(identity.ActionCreate), resp.Action)
	assert.GreaterOrEqual(t, resp.SkillCount, 8)

	doc, err := f.store.FindByExternalID(ctx, "t1", talent.KindJob, "405690")
	require.NoError(t, err)
	assert.Equal(t, resp.DocumentID, doc.ID)
	require.NotNil(t, doc.ExternalID)
	assert.Equal(t, "405690", *doc.ExternalID)
	assert.GreaterOrEqual(t, len(doc.SkillSet), 8)
	assert.Contains(t, doc.MustSkills, "microsoft_excel")
	assert.Equal(t, []string{"ניסיון בעבודה עם אקסל - חובה"}, doc.MandatoryRequirements)
	assert.Equal(t, "tel_aviv", doc.CityCanonical)
	assert.NotContains(t, doc.FullText, "050-1234567")
	assert.Contains(t, doc.FullText, "[PHONE]")
	assert.Equal(t, "9000-10000", doc.Attributes[headers.FieldSalary])

	again, err := f.pipeline.Ingest(ctx, "t1", talent.KindJob, &ingestion.IngestRequest{Fields: secretaryRow()})
	require.NoError(t, err)
	assert.Equal(t, string(identity.ActionUnchanged), again.Action)
	assert.Equal(t, resp.DocumentID, again.DocumentID)

	require.Len(t, f.publisher.events, 1, "unchanged documents are not announced")
	assert.Equal(t, "create", f.publisher.events[0].Action)
	assert.Equal(t, "t1", f.publisher.events[0].TenantID)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.IngestDocumentsTotal.WithLabelValues("job", "create")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.IngestDocumentsTotal.WithLabelValues("job", "unchanged")))
}

func TestIngestUpdateSnapshotsPreviousVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.pipeline.Ingest(ctx, "t1", talent.KindJob, &ingestion.IngestRequest{Fields: secretaryRow()})
	require.NoError(t, err)

	row := secretaryRow()
	row["דרישות תפקיד"] = "ניסיון בעבודה עם אקסל - חובה\nידע ב-SQL"
	second, err := f.pipeline.Ingest(ctx, "t1", talent.KindJob, &ingestion.IngestRequest{Fields: row})
	require.NoError(t, err)
	assert.Equal(t, string(identity.ActionUpdate), second.Action)
	assert.Equal(t, first.DocumentID, second.DocumentID)

	versions, err := f.store.Versions(ctx, "t1", talent.KindJob, first.DocumentID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Contains(t, versions[0].Document.RequirementsText, "אנגלית")

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, "update", f.publisher.events[1].Action)
}

func TestIngestContactDetailsDoNotChangeIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := func(phone, email string) string {
		return strings.Join([]string{
			"שם מלא: דנה כהן",
			"טלפון: " + phone,
			"מייל: " + email,
			"עיר: חיפה",
			"ניסיון בפיתוח Python ו-SQL. ליצירת קשר " + phone + " או " + email,
		}, "\n")
	}

	a, err := f.pipeline.Ingest(ctx, "t1", talent.KindCandidate, &ingestion.IngestRequest{Text: text("050-1234567", "dana@example.com")})
	require.NoError(t, err)
	b, err := f.pipeline.Ingest(ctx, "t1", talent.KindCandidate, &ingestion.IngestRequest{Text: text("+972 52 765 4321", "d.cohen@mail.co.il")})
	require.NoError(t, err)

	assert.Equal(t, string(identity.ActionCreate), a.Action)
	assert.Equal(t, string(identity.ActionUnchanged), b.Action)
	assert.Equal(t, a.DocumentID, b.DocumentID)

	doc, err := f.store.Get(ctx, "t1", talent.KindCandidate, a.DocumentID)
	require.NoError(t, err)
	assert.Nil(t, doc.ExternalID)
	assert.NotContains(t, doc.Attributes, headers.FieldPhone)
	assert.NotContains(t, doc.Attributes, headers.FieldEmail)
	assert.Equal(t, "דנה כהן", doc.Attributes[headers.FieldFullName])
	assert.NotContains(t, doc.FullText, "@")
	assert.Contains(t, doc.SkillSet, "python")
	assert.Contains(t, doc.SkillSet, "sql")
	assert.Equal(t, "haifa", doc.CityCanonical)
}

func TestIngestSameTextDifferentTitleIsOneEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	candidate := func(title string) *ingestion.IngestRequest {
		return &ingestion.IngestRequest{Fields: map[string]string{
			"title":       title,
			"description": "Python, SQL, Docker",
		}}
	}

	a, err := f.pipeline.Ingest(ctx, "t1", talent.KindCandidate, candidate("Developer"))
	require.NoError(t, err)
	b, err := f.pipeline.Ingest(ctx, "t1", talent.KindCandidate, candidate("Engineer"))
	require.NoError(t, err)

	assert.Equal(t, string(identity.ActionCreate), a.Action)
	assert.Equal(t, string(identity.ActionUnchanged), b.Action)
	assert.Equal(t, a.DocumentID, b.DocumentID)

	n, err := f.store.Count(ctx, "t1", talent.KindCandidate)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestCandidateKeepsExternalCandidateIDAsAttribute(t *testing.T) {
	f := newFixture(t)
	resp, err := f.pipeline.Ingest(context.Background(), "t1", talent.KindCandidate, &ingestion.IngestRequest{
		Fields: map[string]string{"מספר מועמד": "C-17", "ניסיון": "Excel, Word"},
	})
	require.NoError(t, err)

	doc, err := f.store.Get(context.Background(), "t1", talent.KindCandidate, resp.DocumentID)
	require.NoError(t, err)
	assert.Nil(t, doc.ExternalID)
	assert.Equal(t, "C-17", doc.Attributes[headers.FieldExternalCandidateID])
	assert.Contains(t, doc.Flags, talent.FlagMissingTitle)
}

func TestIngestFlagsJobWithoutIdentityAndUnknownCity(t *testing.T) {
	f := newFixture(t)
	resp, err := f.pipeline.Ingest(context.Background(), "t1", talent.KindJob, &ingestion.IngestRequest{
		Text: "שם משרה: מפתח תוכנה\nעיר: Atlantis\nPython, Docker, Kubernetes",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Flags, talent.FlagMissingExternalID)
	assert.Contains(t, resp.Flags, talent.FlagUnresolvedCity)

	doc, err := f.store.Get(context.Background(), "t1", talent.KindJob, resp.DocumentID)
	require.NoError(t, err)
	assert.Nil(t, doc.ExternalID)
	assert.Equal(t, "atlantis", doc.CityCanonical)
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Ingest(context.Background(), "t1", talent.KindJob, &ingestion.IngestRequest{Text: "  "})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.pipeline.Ingest(context.Background(), "", talent.KindJob, &ingestion.IngestRequest{Text: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.IngestFailuresTotal.WithLabelValues("job", "invalid")))
	n, _ := f.store.Count(context.Background(), "t1", talent.KindJob)
	assert.Zero(t, n)
}

func TestIngestSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	resp, err := f.pipeline.Ingest(context.Background(), "t1", talent.KindJob, &ingestion.IngestRequest{Fields: secretaryRow()})
	require.NoError(t, err)
	assert.Equal(t, string(identity.ActionCreate), resp.Action)
}

func TestIngestBatchReportsFailuresAndSavesRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dup := secretaryRow()
	items := []ingestion.IngestRequest{
		{Fields: secretaryRow()},
		{Text: ""},
		{Text: "שם משרה: נציג שירות\nמספר משרה: 500\nשירות לקוחות, Excel"},
		{Fields: dup},
	}
	report, err := f.pipeline.IngestBatch(ctx, "t1", talent.KindJob, items)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Equal(t, 3, report.Created+report.Unchanged+report.Updated)

	n, err := f.store.Count(ctx, "t1", talent.KindJob)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	runs, err := f.store.LatestRuns(ctx, "t1", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, 4, runs[0].Total)
	assert.Greater(t, runs[0].AvgSkills, 0.0)
	assert.NotEmpty(t, runs[0].SkillHistogram)
}

func TestIngestBatchRejectsOversizedBatch(t *testing.T) {
	f := newFixture(t)
	items := make([]ingestion.IngestRequest, 11)
	_, err := f.pipeline.IngestBatch(context.Background(), "t1", talent.KindJob, items)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSummarize(t *testing.T) {
	run := &talent.IngestionRun{Failures: []talent.ItemFailure{{Index: 3}, {Index: 1}}}
	summarize(run, []*itemResult{
		{outcome: &identity.Outcome{Action: identity.ActionCreate}, doc: &talent.Document{
			SkillSet:              []string{"a", "b", "c", "d"},
			SyntheticSkills:       []talent.SyntheticSkill{{Name: "d", Reason: "top_up"}},
			MandatoryRequirements: []string{"a - must"},
		}},
		nil,
		{outcome: &identity.Outcome{Action: identity.ActionUnchanged}, doc: &talent.Document{SkillSet: []string{"a", "b"}}},
	})

	assert.Equal(t, 2, run.Failed)
	assert.Equal(t, 1, run.Failures[0].Index)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 1, run.Unchanged)
	assert.Equal(t, 3.0, run.AvgSkills)
	assert.Equal(t, map[string]int{"4": 1, "2": 1}, run.SkillHistogram)
	assert.Equal(t, 0.17, run.SyntheticRatio)
	assert.Equal(t, 0.5, run.MandatoryDetectRate)
}

func TestPurgeAnnouncesRemoval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.pipeline.Ingest(ctx, "t1", talent.KindJob, &ingestion.IngestRequest{Fields: secretaryRow()})
	require.NoError(t, err)

	assert.ErrorIs(t, f.pipeline.Purge(ctx, "t2", talent.KindJob, resp.DocumentID), apperrors.ErrNotFound)
	require.NoError(t, f.pipeline.Purge(ctx, "t1", talent.KindJob, resp.DocumentID))

	_, err = f.store.Get(ctx, "t1", talent.KindJob, resp.DocumentID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.Len(t, f.publisher.events, 2)
	last := f.publisher.events[1]
	assert.Equal(t, ingestion.ActionPurged, last.Action)
	assert.Equal(t, resp.DocumentID, last.DocumentID)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		f.metrics.IngestDocumentsTotal.WithLabelValues(string(talent.KindJob), ingestion.ActionPurged)))
}

// slowStore delays inserts past the item timeout.
type slowStore struct {
	*store.Memory
	delay time.Duration
}

func (s *slowStore) Insert(ctx context.Context, doc *talent.Document) error {
	time.Sleep(s.delay)
	return s.Memory.Insert(ctx, doc)
}

func TestIngestBatchItemTimeoutIsNotStored(t *testing.T) {
	v, err := vocabulary.Default()
	require.NoError(t, err)
	reg := vocabulary.NewStaticRegistry(v)
	mapper, err := headers.NewMapper(nil)
	require.NoError(t, err)
	slow := &slowStore{Memory: store.NewMemory(), delay: 50 * time.Millisecond}
	m := metrics.New(prometheus.NewRegistry())
	p := New(Deps{
		Mapper:     mapper,
		Registry:   reg,
		Extractor:  extractor.New(reg, extractor.DefaultOptions()),
		Reconciler: identity.NewReconciler(slow, 3, identity.WithBackoff(time.Millisecond)),
		Store:      slow,
		Metrics:    m,
	}, Options{BatchConcurrency: 1, ItemTimeout: 10 * time.Millisecond, MaxBatchSize: 10})
	ctx := context.Background()

	report, err := p.IngestBatch(ctx, "t1", talent.KindJob, []ingestion.IngestRequest{{Fields: secretaryRow()}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason, "timed out")

	n, err := slow.Count(ctx, "t1", talent.KindJob)
	require.NoError(t, err)
	assert.Zero(t, n, "an item reported as timed out is never stored")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestFailuresTotal.WithLabelValues("job", "timeout")))
}
