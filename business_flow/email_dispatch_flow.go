package businessflow

import (
	"context"

	"gorm.io/gorm"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
)

// EmailDispatchFlow represents the email broadcast operations used by handlers
type EmailDispatchFlow interface {
	Create(ctx context.Context, req *dto.CreateEmailDispatchRequest, metadata *ClientMetadata) (*dto.CreateDispatchResponse, error)
	List(ctx context.Context, req *dto.ListDispatchesRequest) (*dto.ListDispatchesResponse, error)
	Get(ctx context.Context, id uint) (*dto.GetDispatchResponse, error)
	Recipients(ctx context.Context, id uint, page, pageSize int) ([]dto.RecipientDTO, error)
}

// EmailDispatchFlowImpl implements EmailDispatchFlow
type EmailDispatchFlowImpl struct {
	dispatchRepo  repository.EmailDispatchRepository
	recipientRepo repository.EmailRecipientRepository
	contactRepo   repository.ContactRepository
	db            *gorm.DB
}

func NewEmailDispatchFlow(
	dispatchRepo repository.EmailDispatchRepository,
	recipientRepo repository.EmailRecipientRepository,
	contactRepo repository.ContactRepository,
	db *gorm.DB,
) EmailDispatchFlow {
	return &EmailDispatchFlowImpl{
		dispatchRepo:  dispatchRepo,
		recipientRepo: recipientRepo,
		contactRepo:   contactRepo,
		db:            db,
	}
}

func (f *EmailDispatchFlowImpl) Create(ctx context.Context, req *dto.CreateEmailDispatchRequest, metadata *ClientMetadata) (*dto.CreateDispatchResponse, error) {
	if req == nil || req.Subject == "" {
		return nil, NewBusinessError("DISPATCH_VALIDATION_FAILED", "Dispatch validation failed", ErrDispatchSubjectRequired)
	}
	if req.Message == "" {
		return nil, NewBusinessError("DISPATCH_VALIDATION_FAILED", "Dispatch validation failed", ErrDispatchMessageRequired)
	}

	filter := ToModelFilter(req.Filter)

	var (
		dispatch *models.EmailDispatch
		total    int64
	)
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		dispatch = &models.EmailDispatch{
			Subject:        req.Subject,
			Message:        req.Message,
			Filter:         filter,
			Status:         models.DispatchStatusPending,
			BannerImage:    req.BannerImage,
			AttachmentPath: req.AttachmentPath,
			AttachmentName: req.AttachmentName,
		}
		if err := f.dispatchRepo.Save(txCtx, dispatch); err != nil {
			return err
		}
		var err error
		total, err = f.contactRepo.CountEligibleEmail(txCtx, dispatch.ID, filter)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("DISPATCH_CREATE_FAILED", "Failed to create dispatch", err)
	}
	if total == 0 {
		// Still created: the runner completes it on its first tick
		return &dto.CreateDispatchResponse{ID: dispatch.ID, Status: dispatch.Status.String(), TotalRecipients: 0}, nil
	}

	return &dto.CreateDispatchResponse{
		ID:              dispatch.ID,
		Status:          dispatch.Status.String(),
		TotalRecipients: total,
	}, nil
}

func (f *EmailDispatchFlowImpl) List(ctx context.Context, req *dto.ListDispatchesRequest) (*dto.ListDispatchesResponse, error) {
	page, pageSize := 1, 20
	if req != nil {
		page, pageSize = normalizePaging(req.Page, req.PageSize)
	}

	total, err := f.dispatchRepo.Count(ctx, models.EmailDispatchFilter{})
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LIST_FAILED", "Failed to list dispatches", err)
	}

	rows, err := f.dispatchRepo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LIST_FAILED", "Failed to list dispatches", err)
	}

	items := make([]dto.DispatchSummaryDTO, 0, len(rows))
	for _, d := range rows {
		counts, err := f.counts(ctx, d.ID)
		if err != nil {
			return nil, NewBusinessError("DISPATCH_LIST_FAILED", "Failed to aggregate dispatch counts", err)
		}
		items = append(items, dto.DispatchSummaryDTO{
			ID:          d.ID,
			Title:       d.Subject,
			Status:      d.Status.String(),
			Filter:      ToFilterDTO(d.Filter),
			SentAt:      d.SentAt,
			CompletedAt: d.CompletedAt,
			CreatedAt:   d.CreatedAt,
			Counts:      counts,
		})
	}

	return &dto.ListDispatchesResponse{
		Items:      items,
		Pagination: dto.PaginationDTO{Page: page, PageSize: pageSize, Total: total},
	}, nil
}

func (f *EmailDispatchFlowImpl) Get(ctx context.Context, id uint) (*dto.GetDispatchResponse, error) {
	d, err := f.dispatchRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LOOKUP_FAILED", "Failed to lookup dispatch", err)
	}
	if d == nil {
		return nil, NewBusinessError("DISPATCH_NOT_FOUND", "Dispatch not found", ErrDispatchNotFound)
	}

	counts, err := f.counts(ctx, d.ID)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LOOKUP_FAILED", "Failed to aggregate dispatch counts", err)
	}

	return &dto.GetDispatchResponse{
		ID:             d.ID,
		Title:          d.Subject,
		Message:        d.Message,
		Status:         d.Status.String(),
		Filter:         ToFilterDTO(d.Filter),
		BannerImage:    d.BannerImage,
		AttachmentName: d.AttachmentName,
		SentAt:         d.SentAt,
		CompletedAt:    d.CompletedAt,
		CreatedAt:      d.CreatedAt,
		ErrorLog:       ToErrorLogDTO(d.ErrorLog),
		Counts:         counts,
	}, nil
}

func (f *EmailDispatchFlowImpl) Recipients(ctx context.Context, id uint, page, pageSize int) ([]dto.RecipientDTO, error) {
	page, pageSize = normalizePaging(page, pageSize)

	d, err := f.dispatchRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DISPATCH_LOOKUP_FAILED", "Failed to lookup dispatch", err)
	}
	if d == nil {
		return nil, NewBusinessError("DISPATCH_NOT_FOUND", "Dispatch not found", ErrDispatchNotFound)
	}

	rows, err := f.recipientRepo.ListByDispatch(ctx, id, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LIST_FAILED", "Failed to list recipients", err)
	}

	out := make([]dto.RecipientDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.RecipientDTO{
			ID:          r.ID,
			Address:     r.Email,
			Status:      string(r.Status),
			Error:       r.Error,
			DeliveredAt: r.DeliveredAt,
			OpenedAt:    r.OpenedAt,
			ClickedAt:   r.ClickedAt,
			ClickedLink: r.ClickedLink,
		})
	}
	return out, nil
}

func (f *EmailDispatchFlowImpl) counts(ctx context.Context, dispatchID uint) (dto.RecipientCountsDTO, error) {
	byStatus, err := f.recipientRepo.CountsByStatus(ctx, dispatchID)
	if err != nil {
		return dto.RecipientCountsDTO{}, err
	}
	counts := dto.RecipientCountsDTO{
		Pending:   byStatus[models.RecipientStatusPending],
		Delivered: byStatus[models.RecipientStatusDelivered],
		Opened:    byStatus[models.RecipientStatusOpened],
		Failed:    byStatus[models.RecipientStatusFailed],
	}
	counts.Total = counts.Pending + counts.Delivered + counts.Opened + counts.Failed
	return counts, nil
}
