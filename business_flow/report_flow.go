package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
)

// ReportFlow builds downloadable delivery reports for completed dispatches
type ReportFlow interface {
	EmailDispatchReport(ctx context.Context, dispatchID uint) (string, []byte, error)
	ChatDispatchReport(ctx context.Context, dispatchID uint) (string, []byte, error)
}

// ReportFlowImpl implements ReportFlow
type ReportFlowImpl struct {
	emailDispatchRepo  repository.EmailDispatchRepository
	emailRecipientRepo repository.EmailRecipientRepository
	chatDispatchRepo   repository.ChatDispatchRepository
	chatRecipientRepo  repository.ChatRecipientRepository
}

func NewReportFlow(
	emailDispatchRepo repository.EmailDispatchRepository,
	emailRecipientRepo repository.EmailRecipientRepository,
	chatDispatchRepo repository.ChatDispatchRepository,
	chatRecipientRepo repository.ChatRecipientRepository,
) ReportFlow {
	return &ReportFlowImpl{
		emailDispatchRepo:  emailDispatchRepo,
		emailRecipientRepo: emailRecipientRepo,
		chatDispatchRepo:   chatDispatchRepo,
		chatRecipientRepo:  chatRecipientRepo,
	}
}

// reportPageSize bounds each recipient read while streaming rows into a sheet
const reportPageSize = 500

func (f *ReportFlowImpl) EmailDispatchReport(ctx context.Context, dispatchID uint) (string, []byte, error) {
	dispatch, err := f.emailDispatchRepo.ByID(ctx, dispatchID)
	if err != nil {
		return "", nil, NewBusinessError("DISPATCH_LOOKUP_FAILED", "Failed to lookup dispatch", err)
	}
	if dispatch == nil {
		return "", nil, NewBusinessError("DISPATCH_NOT_FOUND", "Dispatch not found", ErrDispatchNotFound)
	}
	if dispatch.Status != models.DispatchStatusCompleted {
		return "", nil, NewBusinessError("DISPATCH_NOT_COMPLETED", "Report is only available for completed dispatches", ErrDispatchNotCompleted)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	xl.SetSheetName(sheet, "recipients")
	sheet = "recipients"

	header := []string{"id", "email", "status", "delivered_at", "opened_at", "clicked_at", "clicked_link", "error", "created_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	rowNum := 2
	for offset := 0; ; offset += reportPageSize {
		rows, err := f.emailRecipientRepo.ListByDispatch(ctx, dispatchID, reportPageSize, offset)
		if err != nil {
			return "", nil, NewBusinessError("REPORT_BUILD_FAILED", "Failed to read recipients", err)
		}
		for _, r := range rows {
			record := []string{
				strconv.FormatUint(uint64(r.ID), 10),
				r.Email,
				string(r.Status),
				formatTimePtr(r.DeliveredAt),
				formatTimePtr(r.OpenedAt),
				formatTimePtr(r.ClickedAt),
				stringPtrOrEmpty(r.ClickedLink),
				stringPtrOrEmpty(r.Error),
				r.CreatedAt.UTC().Format(time.RFC3339),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, rowNum)
			_ = xl.SetSheetRow(sheet, cellRef, &record)
			rowNum++
		}
		if len(rows) < reportPageSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("email_dispatch_%d_report.xlsx", dispatchID)
	return filename, buf.Bytes(), nil
}

func (f *ReportFlowImpl) ChatDispatchReport(ctx context.Context, dispatchID uint) (string, []byte, error) {
	dispatch, err := f.chatDispatchRepo.ByID(ctx, dispatchID)
	if err != nil {
		return "", nil, NewBusinessError("DISPATCH_LOOKUP_FAILED", "Failed to lookup dispatch", err)
	}
	if dispatch == nil {
		return "", nil, NewBusinessError("DISPATCH_NOT_FOUND", "Dispatch not found", ErrDispatchNotFound)
	}
	if dispatch.Status != models.DispatchStatusCompleted {
		return "", nil, NewBusinessError("DISPATCH_NOT_COMPLETED", "Report is only available for completed dispatches", ErrDispatchNotCompleted)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	xl.SetSheetName(sheet, "recipients")
	sheet = "recipients"

	header := []string{"id", "kc_user_id", "status", "delivered_at", "error", "created_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	rowNum := 2
	for offset := 0; ; offset += reportPageSize {
		rows, err := f.chatRecipientRepo.ListByDispatch(ctx, dispatchID, reportPageSize, offset)
		if err != nil {
			return "", nil, NewBusinessError("REPORT_BUILD_FAILED", "Failed to read recipients", err)
		}
		for _, r := range rows {
			record := []string{
				strconv.FormatUint(uint64(r.ID), 10),
				r.KCUserID,
				string(r.Status),
				formatTimePtr(r.DeliveredAt),
				stringPtrOrEmpty(r.Error),
				r.CreatedAt.UTC().Format(time.RFC3339),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, rowNum)
			_ = xl.SetSheetRow(sheet, cellRef, &record)
			rowNum++
		}
		if len(rows) < reportPageSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("kingschat_dispatch_%d_report.xlsx", dispatchID)
	return filename, buf.Bytes(), nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func stringPtrOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
