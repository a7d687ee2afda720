package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
)

// ContactFlow represents contact listing, filter options, and unsubscribe
type ContactFlow interface {
	List(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error)
	FilterOptions(ctx context.Context) (*dto.ContactFilterOptionsResponse, error)
	Unsubscribe(ctx context.Context, token string) (*dto.UnsubscribeResponse, error)
}

// ContactFlowImpl implements ContactFlow
type ContactFlowImpl struct {
	contactRepo   repository.ContactRepository
	recipientRepo repository.EmailRecipientRepository
	cache         *redis.Client
	cachePrefix   string
	cacheTTL      time.Duration
}

func NewContactFlow(
	contactRepo repository.ContactRepository,
	recipientRepo repository.EmailRecipientRepository,
	cache *redis.Client,
	cachePrefix string,
	cacheTTL time.Duration,
) ContactFlow {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &ContactFlowImpl{
		contactRepo:   contactRepo,
		recipientRepo: recipientRepo,
		cache:         cache,
		cachePrefix:   cachePrefix,
		cacheTTL:      cacheTTL,
	}
}

func (f *ContactFlowImpl) List(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error) {
	page, pageSize := 1, 20
	filter := models.ContactFilter{}
	if req != nil {
		page, pageSize = normalizePaging(req.Page, req.PageSize)
		if req.Designation != nil && *req.Designation != "" {
			filter.Designation = req.Designation
		}
		if req.Zone != nil && *req.Zone != "" {
			filter.Zone = req.Zone
		}
		if req.Country != nil && *req.Country != "" {
			filter.Country = req.Country
		}
	}

	total, err := f.contactRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to list contacts", err)
	}

	rows, err := f.contactRepo.ByFilter(ctx, filter, "full_name ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to list contacts", err)
	}

	items := make([]dto.ContactDTO, 0, len(rows))
	for _, c := range rows {
		items = append(items, ToContactDTO(*c))
	}

	return &dto.ListContactsResponse{
		Items:      items,
		Pagination: dto.PaginationDTO{Page: page, PageSize: pageSize, Total: total},
	}, nil
}

func (f *ContactFlowImpl) FilterOptions(ctx context.Context) (*dto.ContactFilterOptionsResponse, error) {
	designations, err := f.distinct(ctx, "designation")
	if err != nil {
		return nil, NewBusinessError("FILTER_OPTIONS_FAILED", "Failed to load filter options", err)
	}
	zones, err := f.distinct(ctx, "zone")
	if err != nil {
		return nil, NewBusinessError("FILTER_OPTIONS_FAILED", "Failed to load filter options", err)
	}
	countries, err := f.distinct(ctx, "country")
	if err != nil {
		return nil, NewBusinessError("FILTER_OPTIONS_FAILED", "Failed to load filter options", err)
	}

	return &dto.ContactFilterOptionsResponse{
		Designations: designations,
		Zones:        zones,
		Countries:    countries,
	}, nil
}

// distinct serves column values from redis when available, falling back to the
// database and repopulating the cache. Cache failures degrade to direct reads.
func (f *ContactFlowImpl) distinct(ctx context.Context, column string) ([]string, error) {
	key := f.cachePrefix + "contacts:options:" + column

	if f.cache != nil {
		if raw, err := f.cache.Get(ctx, key).Result(); err == nil {
			var values []string
			if err := json.Unmarshal([]byte(raw), &values); err == nil {
				return values, nil
			}
		}
	}

	values, err := f.contactRepo.DistinctValues(ctx, column)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if raw, err := json.Marshal(values); err == nil {
			f.cache.Set(ctx, key, raw, f.cacheTTL)
		}
	}
	return values, nil
}

func (f *ContactFlowImpl) Unsubscribe(ctx context.Context, token string) (*dto.UnsubscribeResponse, error) {
	if token == "" {
		return nil, NewBusinessError("UNSUBSCRIBE_TOKEN_UNKNOWN", "Unknown unsubscribe token", ErrUnsubscribeTokenUnknown)
	}

	recipient, err := f.recipientRepo.ByUnsubscribeToken(ctx, token)
	if err != nil {
		return nil, NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to unsubscribe", err)
	}
	if recipient == nil {
		return nil, NewBusinessError("UNSUBSCRIBE_TOKEN_UNKNOWN", "Unknown unsubscribe token", ErrUnsubscribeTokenUnknown)
	}

	contact, err := f.contactRepo.ByID(ctx, recipient.ContactID)
	if err != nil {
		return nil, NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to unsubscribe", err)
	}
	if contact == nil {
		return nil, NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", ErrContactNotFound)
	}

	if err := f.contactRepo.Unsubscribe(ctx, contact.ID); err != nil {
		return nil, NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to unsubscribe", err)
	}

	return &dto.UnsubscribeResponse{Email: recipient.Email}, nil
}
