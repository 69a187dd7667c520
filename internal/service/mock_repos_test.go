package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/notify"
	"medic-workbook/backend/internal/phase"
	pkgerrors "medic-workbook/backend/pkg/errors"
)

// ── Mock SubmissionRepository ──

type subKey struct {
	studentID  string
	formType   phase.FormType
	formNumber int
}

type mockSubmissionRepo struct {
	mu      sync.Mutex
	subs    map[subKey]*model.Submission
	listErr error
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{subs: make(map[subKey]*model.Submission)}
}

func (m *mockSubmissionRepo) Upsert(_ context.Context, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subKey{sub.StudentID, sub.FormType, sub.FormNumber}
	now := time.Now().UTC()
	existing, ok := m.subs[key]
	if ok && existing.IsSubmitted() && !sub.IsSubmitted() {
		return pkgerrors.ErrInvalidTransition
	}

	stored := *sub
	stored.UpdatedAt = now
	if ok {
		stored.CreatedAt = existing.CreatedAt
		stored.SubmittedAt = existing.SubmittedAt
	} else {
		stored.CreatedAt = now
	}
	if stored.IsSubmitted() && stored.SubmittedAt == nil {
		stored.SubmittedAt = &now
	}
	m.subs[key] = &stored
	*sub = stored
	return nil
}

func (m *mockSubmissionRepo) Get(_ context.Context, studentID string, formType phase.FormType, formNumber int) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[subKey{studentID, formType, formNumber}]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) ListByStudent(_ context.Context, studentID string) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []model.Submission
	for k, s := range m.subs {
		if k.studentID == studentID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, studentID string, formType phase.FormType, formNumber int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey{studentID, formType, formNumber}
	if _, ok := m.subs[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.subs, key)
	return nil
}

func (m *mockSubmissionRepo) ListStudentIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for k := range m.subs {
		if !seen[k.studentID] {
			seen[k.studentID] = true
			ids = append(ids, k.studentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Mock ProgressRepository ──

type mockProgressRepo struct {
	mu      sync.Mutex
	phases  map[string]map[string]model.PhaseProgress
	overall map[string]model.OverallProgress

	// failPhase makes UpsertPhase fail for the named phase while failures[name] > 0
	failPhase  map[string]int
	failAll    int // UpsertPhase and UpsertOverall fail while > 0, decremented per fix attempt
	upsertErr  error
	phaseCalls int
}

func newMockProgressRepo() *mockProgressRepo {
	return &mockProgressRepo{
		phases:    make(map[string]map[string]model.PhaseProgress),
		overall:   make(map[string]model.OverallProgress),
		failPhase: make(map[string]int),
		upsertErr: pkgerrors.ErrStoreUnavailable,
	}
}

func (m *mockProgressRepo) UpsertPhase(_ context.Context, rec *model.PhaseProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phaseCalls++
	if m.failAll > 0 {
		return m.upsertErr
	}
	if m.failPhase[rec.PhaseName] > 0 {
		m.failPhase[rec.PhaseName]--
		return m.upsertErr
	}
	if m.phases[rec.StudentID] == nil {
		m.phases[rec.StudentID] = make(map[string]model.PhaseProgress)
	}
	m.phases[rec.StudentID][rec.PhaseName] = *rec
	return nil
}

func (m *mockProgressRepo) UpsertOverall(_ context.Context, rec *model.OverallProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll > 0 {
		m.failAll--
		return m.upsertErr
	}
	m.overall[rec.StudentID] = *rec
	return nil
}

func (m *mockProgressRepo) GetPhase(_ context.Context, studentID, phaseName string) (*model.PhaseProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.phases[studentID][phaseName]; ok {
		return &rec, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProgressRepo) ListPhases(_ context.Context, studentID string) ([]model.PhaseProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.PhaseProgress
	for _, rec := range m.phases[studentID] {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PhaseName < result[j].PhaseName })
	return result, nil
}

func (m *mockProgressRepo) GetOverall(_ context.Context, studentID string) (*model.OverallProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.overall[studentID]; ok {
		return &rec, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProgressRepo) ListOverall(_ context.Context) ([]model.OverallProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.OverallProgress
	for _, rec := range m.overall {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (m *mockProgressRepo) ListStudentIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for id := range m.overall {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range m.phases {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Mock ReconciliationReportRepository ──

type mockReportRepo struct {
	mu      sync.Mutex
	reports []model.ReconciliationReport
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{}
}

func (m *mockReportRepo) Create(_ context.Context, report *model.ReconciliationReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *report)
	return nil
}

func (m *mockReportRepo) ListByStudent(_ context.Context, studentID string, limit int) ([]model.ReconciliationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ReconciliationReport
	for i := len(m.reports) - 1; i >= 0 && len(result) < limit; i-- {
		if m.reports[i].StudentID == studentID {
			result = append(result, m.reports[i])
		}
	}
	return result, nil
}

func (m *mockReportRepo) byKind(kind string) []model.ReconciliationReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.ReconciliationReport
	for _, r := range m.reports {
		if r.Kind == kind {
			result = append(result, r)
		}
	}
	return result
}

// ── Mock notify.Publisher ──

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) last() notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
