package service

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/internal/state"
	"github.com/noah-isme/labreview-api/pkg/export"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
)

// ExportFormat selects the rendered output.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders the course results table for download by teaching
// staff: one row per owner, one column per assignment.
type ExportService struct {
	store  *state.Store
	owners *OwnerService
	grades *GradeService
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(store *state.Store, owners *OwnerService, grades *GradeService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{store: store, owners: owners, grades: grades, csv: csv, pdf: pdf, logger: logger}
}

// CourseResults renders the results of a course in the requested format and
// returns the payload with its content type.
func (s *ExportService) CourseResults(courseID uint64, format ExportFormat) ([]byte, string, error) {
	assignments := s.store.Assignments(courseID)
	if len(assignments) == 0 {
		return nil, "", appErrors.ErrNotFound
	}

	dataset := s.buildDataset(assignments)

	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(dataset)
		return payload, "text/csv", err
	case FormatPDF:
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Course %d results", courseID))
		return payload, "application/pdf", err
	default:
		return nil, "", appErrors.Wrap(fmt.Errorf("unsupported format %q", format), appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
}

func (s *ExportService) buildDataset(assignments []*models.Assignment) export.Dataset {
	headers := []string{"Owner"}
	for _, a := range assignments {
		headers = append(headers, a.Name)
	}
	headers = append(headers, "Total", "Approved")

	rows := []map[string]string{}
	for _, kind := range []state.TableKind{state.TableUser, state.TableGroup} {
		for _, owner := range s.store.Index.Owners(kind) {
			rows = append(rows, s.buildRow(owner, assignments))
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) buildRow(owner models.Owner, assignments []*models.Assignment) map[string]string {
	row := map[string]string{"Owner": owner.String()}
	all := []*models.Submission{}
	for _, a := range assignments {
		cell := ""
		for _, sub := range s.owners.ForAssignment(owner, a) {
			cell = fmt.Sprintf("%d%% %s", sub.Score, statusText(aggregateStatus(sub)))
			all = append(all, sub)
		}
		row[a.Name] = cell
	}
	row["Total"] = strconv.FormatUint(uint64(models.TotalScore(all)), 10)
	row["Approved"] = strconv.Itoa(models.NumApproved(all))
	return row
}

// aggregateStatus reduces a grade list to a single display status: the
// unanimous status when one exists, NONE otherwise.
func aggregateStatus(sub *models.Submission) models.SubmissionStatus {
	for _, status := range []models.SubmissionStatus{models.StatusApproved, models.StatusRejected, models.StatusRevision} {
		if len(sub.Grades) > 0 && sub.HasAllStatus(status) {
			return status
		}
	}
	return models.StatusNone
}
