package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/export"
	"github.com/edulink/lms-api/pkg/storage"
)

// ExportFormat names a supported roster export format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportUserRepository interface {
	ListAllByRole(ctx context.Context, role models.UserRole, classID string) ([]models.UserDetail, error)
}

type exportSubjectRepository interface {
	ListAll(ctx context.Context) ([]models.SubjectDetail, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders account rosters to downloadable files behind signed
// URLs.
type ExportService struct {
	users    exportUserRepository
	subjects exportSubjectRepository
	storage  exportStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(users exportUserRepository, subjects exportSubjectRepository, store exportStorage, signer *storage.SignedURLSigner, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{users: users, subjects: subjects, storage: store, csv: csv, pdf: pdf, signer: signer, logger: logger}
}

// GenerateRoster renders the roster of one role, optionally scoped to a
// class, and returns a signed download token.
func (s *ExportService) GenerateRoster(ctx context.Context, role models.UserRole, classID string, format ExportFormat) (*ExportResult, error) {
	users, err := s.users.ListAllByRole(ctx, role, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := rosterDataset(role, users)
	title := "Student roster"
	if role == models.RoleTeacher {
		title = "Teacher roster"
	}
	return s.publish(dataset, title, strings.ToLower(string(role))+"-roster", format)
}

// GenerateCatalog renders the subject catalogue with class and teacher
// context and returns a signed download token.
func (s *ExportService) GenerateCatalog(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject catalogue")
	}

	rows := make([][]string, 0, len(subjects))
	for _, sub := range subjects {
		rows = append(rows, []string{sub.Name, sub.ClassName, sub.TeacherName, sub.TeacherEmail})
	}
	dataset := export.Dataset{Headers: []string{"Subject", "Class", "Teacher", "Teacher Email"}, Rows: rows}
	return s.publish(dataset, "Subject catalogue", "catalog", format)
}

func (s *ExportService) publish(dataset export.Dataset, title, prefix string, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s-%s.%s", prefix, exportID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependencyFailed.Code, appErrors.ErrDependencyFailed.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}

	return &ExportResult{RelativePath: relPath, Token: token, Format: format, ExpiresAt: expiresAt}, nil
}

// OpenDownload validates a signed token and opens the exported file.
func (s *ExportService) OpenDownload(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return file, nil
}

func rosterDataset(role models.UserRole, users []models.UserDetail) export.Dataset {
	headers := []string{"Name", "Email", "Contact"}
	if role == models.RoleStudent {
		headers = append(headers, "Roll No", "Class", "Status")
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		row := []string{u.Name, u.Email, u.ContactNo}
		if role == models.RoleStudent {
			rollNo := ""
			if u.RollNo != nil {
				rollNo = *u.RollNo
			}
			className := ""
			if u.ClassName != nil {
				className = *u.ClassName
			}
			row = append(row, rollNo, className, string(u.Status))
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
