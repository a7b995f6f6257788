package progress

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/meridian-works/meridian/internal/event"
	"github.com/meridian-works/meridian/internal/metrics"
	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/internal/storage"
	"github.com/meridian-works/meridian/pkg/log"
	"gorm.io/datatypes"
)

// ReportData is the analytics payload stored with a report.
type ReportData struct {
	Burndown []Point  `json:"burndown"`
	Gantt    *Gantt   `json:"gantt"`
	Metrics  *Metrics `json:"metrics"`
}

var csvHeader = []string{
	"Task ID", "Title", "Assignee", "Status", "Priority", "Category",
	"Estimated Hours", "Logged Hours", "Remaining Hours", "Start Date", "Due Date",
}

// Reporter renders project reports and writes their CSV to a store.
type Reporter struct {
	svc     *Service
	store   storage.Store
	emitter *event.Emitter
}

func NewReporter(svc *Service, store storage.Store, emitter *event.Emitter) *Reporter {
	return &Reporter{svc: svc, store: store, emitter: emitter}
}

// Generate builds the analytics payload and task CSV for a project,
// stores the CSV and persists the report row. A CSV write failure still
// persists the report, without a location.
func (r *Reporter) Generate(ctx context.Context, projectID uint, generatedBy string) (*models.ProgressReport, error) {
	var project models.Project
	if err := r.svc.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, err
	}

	data, err := r.build(ctx, projectID)
	if err != nil {
		metrics.ReportsTotal.WithLabelValues(r.store.Name(), "error").Inc()
		return nil, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	now := r.svc.now()
	report := &models.ProgressReport{
		ProjectID:   projectID,
		GeneratedBy: generatedBy,
		ReportData:  datatypes.JSON(raw),
		GeneratedAt: now,
	}

	csvData, err := r.csv(ctx, projectID, data.Gantt)
	if err == nil {
		key := fmt.Sprintf("projects/%s/progress_report_%s_%s.csv", project.Code, project.Code, now.Format("20060102_150405"))
		report.CSVLocation, err = r.store.Put(ctx, key, csvData, "text/csv")
	}
	status := "success"
	if err != nil {
		status = "csv_error"
		log.Error("failed to write progress report csv", "project", projectID, "store", r.store.Name(), "error", err)
	}

	if err := r.svc.db.WithContext(ctx).Create(report).Error; err != nil {
		metrics.ReportsTotal.WithLabelValues(r.store.Name(), "error").Inc()
		return nil, err
	}
	metrics.ReportsTotal.WithLabelValues(r.store.Name(), status).Inc()

	r.emitter.Emit(ctx, event.New(event.TypeReportGenerated, projectID, 0, map[string]any{
		"report_id":    report.ID,
		"csv_location": report.CSVLocation,
	}))

	log.Info("progress report generated", "project", projectID, "report", report.ID, "location", report.CSVLocation)
	return report, nil
}

func (r *Reporter) build(ctx context.Context, projectID uint) (*ReportData, error) {
	burndown, err := r.svc.Burndown(ctx, projectID, DefaultBurndownDays)
	if err != nil {
		return nil, fmt.Errorf("burndown: %w", err)
	}
	gantt, err := r.svc.Gantt(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("gantt: %w", err)
	}
	m, err := r.svc.Metrics(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return &ReportData{Burndown: burndown, Gantt: gantt, Metrics: m}, nil
}

func (r *Reporter) csv(ctx context.Context, projectID uint, gantt *Gantt) ([]byte, error) {
	var tasks []models.Task
	if err := r.svc.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&tasks).Error; err != nil {
		return nil, err
	}
	logged, err := r.svc.loggedHours(ctx, projectID)
	if err != nil {
		return nil, err
	}

	assignees := map[uint]string{}
	for _, t := range gantt.Tasks {
		if t.Assignee != nil {
			assignees[t.ID] = *t.Assignee
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		est, hours := "", logged[t.ID]
		remaining := ""
		if t.EstimatedHours != nil {
			est = formatHours(*t.EstimatedHours)
			left := *t.EstimatedHours - hours
			if left < 0 {
				left = 0
			}
			remaining = formatHours(left)
		}
		start := ""
		if t.StartDate != nil {
			start = t.StartDate.Format(time.DateOnly)
		}

		if err := w.Write([]string{
			strconv.FormatUint(uint64(t.ID), 10),
			t.Title,
			assignees[t.ID],
			string(t.Status),
			string(t.Priority),
			t.Category,
			est,
			formatHours(hours),
			remaining,
			start,
			t.DueDate.Format(time.DateOnly),
		}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatHours(h float64) string {
	return strconv.FormatFloat(round2(h), 'f', -1, 64)
}
