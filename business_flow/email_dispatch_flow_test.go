package businessflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/utils"
)

func seedContact(repo *mockContactRepo, email, designation, zone, country string) *models.Contact {
	return repo.add(models.Contact{
		FullName:    "Contact " + email,
		Email:       utils.ToPtr(email),
		Designation: designation,
		Zone:        zone,
		Country:     country,
		Subscribed:  true,
	})
}

func newEmailFlowForTest() (EmailDispatchFlow, *mockEmailDispatchRepo, *mockEmailRecipientRepo, *mockContactRepo) {
	dispatchRepo := newMockEmailDispatchRepo()
	recipientRepo := newMockEmailRecipientRepo()
	contactRepo := newMockContactRepo()
	contactRepo.emailRecipients = recipientRepo
	flow := NewEmailDispatchFlow(dispatchRepo, recipientRepo, contactRepo, nil)
	return flow, dispatchRepo, recipientRepo, contactRepo
}

func TestEmailDispatchCreate(t *testing.T) {
	metadata := NewClientMetadata("127.0.0.1", "Test Agent")

	t.Run("SubjectRequired", func(t *testing.T) {
		flow, _, _, _ := newEmailFlowForTest()

		_, err := flow.Create(context.Background(), &dto.CreateEmailDispatchRequest{Message: "body"}, metadata)
		require.Error(t, err)
		assert.True(t, IsValidationFailure(err))
	})

	t.Run("MessageRequired", func(t *testing.T) {
		flow, _, _, _ := newEmailFlowForTest()

		_, err := flow.Create(context.Background(), &dto.CreateEmailDispatchRequest{Subject: "News"}, metadata)
		require.Error(t, err)
		assert.True(t, IsValidationFailure(err))
	})

	t.Run("CountsEligibleContacts", func(t *testing.T) {
		flow, dispatchRepo, _, contactRepo := newEmailFlowForTest()
		seedContact(contactRepo, "zonal1@example.com", "Pastor", "Zone A", "Nigeria")
		seedContact(contactRepo, "zonal2@example.com", "Deacon", "Zone A", "Ghana")
		seedContact(contactRepo, "elsewhere@example.com", "Pastor", "Zone B", "Nigeria")

		resp, err := flow.Create(context.Background(), &dto.CreateEmailDispatchRequest{
			Subject: "Zone A briefing",
			Message: "Hello {{name}}",
			Filter:  dto.AudienceFilterDTO{Zone: "Zone A"},
		}, metadata)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, int64(2), resp.TotalRecipients)
		assert.Equal(t, models.DispatchStatusPending.String(), resp.Status)

		saved, err := dispatchRepo.ByID(context.Background(), resp.ID)
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "Zone A briefing", saved.Subject)
		assert.Equal(t, models.AudienceFilter{Designation: models.FilterAll, Zone: "Zone A", Country: models.FilterAll}, saved.Filter)
	})

	t.Run("EmptyFilterMatchesAll", func(t *testing.T) {
		flow, _, _, contactRepo := newEmailFlowForTest()
		seedContact(contactRepo, "one@example.com", "Pastor", "Zone A", "Nigeria")
		seedContact(contactRepo, "two@example.com", "Deacon", "Zone B", "Ghana")

		resp, err := flow.Create(context.Background(), &dto.CreateEmailDispatchRequest{
			Subject: "All hands",
			Message: "Hello",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.TotalRecipients)
	})

	t.Run("UnsubscribedExcluded", func(t *testing.T) {
		flow, _, _, contactRepo := newEmailFlowForTest()
		seedContact(contactRepo, "in@example.com", "Pastor", "Zone A", "Nigeria")
		gone := seedContact(contactRepo, "out@example.com", "Pastor", "Zone A", "Nigeria")
		require.NoError(t, contactRepo.Unsubscribe(context.Background(), gone.ID))

		resp, err := flow.Create(context.Background(), &dto.CreateEmailDispatchRequest{
			Subject: "Subscribers only",
			Message: "Hello",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.TotalRecipients)
	})

	t.Run("ZeroRecipientsStillCreated", func(t *testing.T) {
		flow, dispatchRepo, _, _ := newEmailFlowForTest()

		resp, err := flow.Create(context.Background(), &dto.CreateEmailDispatchRequest{
			Subject: "Nobody home",
			Message: "Hello",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, int64(0), resp.TotalRecipients)

		saved, _ := dispatchRepo.ByID(context.Background(), resp.ID)
		require.NotNil(t, saved)
		assert.Equal(t, models.DispatchStatusPending, saved.Status)
	})
}

func TestEmailDispatchGet(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		flow, _, _, _ := newEmailFlowForTest()

		_, err := flow.Get(context.Background(), 42)
		require.Error(t, err)
		assert.True(t, IsDispatchNotFound(err))
	})

	t.Run("AggregatesRecipientCounts", func(t *testing.T) {
		flow, dispatchRepo, recipientRepo, _ := newEmailFlowForTest()

		dispatch := &models.EmailDispatch{
			Subject: "Easter service",
			Message: "Hello",
			Filter:  models.AudienceFilter{Designation: models.FilterAll, Zone: models.FilterAll, Country: models.FilterAll},
			Status:  models.DispatchStatusProcessing,
		}
		require.NoError(t, dispatchRepo.Save(context.Background(), dispatch))

		recipientRepo.add(models.EmailRecipient{DispatchID: dispatch.ID, Email: "a@example.com", Status: models.RecipientStatusDelivered})
		recipientRepo.add(models.EmailRecipient{DispatchID: dispatch.ID, Email: "b@example.com", Status: models.RecipientStatusOpened})
		recipientRepo.add(models.EmailRecipient{DispatchID: dispatch.ID, Email: "c@example.com", Status: models.RecipientStatusFailed})
		recipientRepo.add(models.EmailRecipient{DispatchID: dispatch.ID, Email: "d@example.com"})

		resp, err := flow.Get(context.Background(), dispatch.ID)
		require.NoError(t, err)
		assert.Equal(t, "Easter service", resp.Title)
		assert.Equal(t, int64(4), resp.Counts.Total)
		assert.Equal(t, int64(1), resp.Counts.Pending)
		assert.Equal(t, int64(1), resp.Counts.Delivered)
		assert.Equal(t, int64(1), resp.Counts.Opened)
		assert.Equal(t, int64(1), resp.Counts.Failed)
	})
}

func TestEmailDispatchList(t *testing.T) {
	flow, dispatchRepo, _, _ := newEmailFlowForTest()

	for i := 0; i < 5; i++ {
		require.NoError(t, dispatchRepo.Save(context.Background(), &models.EmailDispatch{
			Subject: "Broadcast",
			Message: "Hello",
			Filter:  models.AudienceFilter{Designation: models.FilterAll, Zone: models.FilterAll, Country: models.FilterAll},
			Status:  models.DispatchStatusPending,
		}))
	}

	resp, err := flow.List(context.Background(), &dto.ListDispatchesRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Pagination.Total)
	assert.Len(t, resp.Items, 2)
	// newest first
	assert.Greater(t, resp.Items[0].ID, resp.Items[1].ID)

	last, err := flow.List(context.Background(), &dto.ListDispatchesRequest{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
}

func TestEmailDispatchRecipients(t *testing.T) {
	flow, dispatchRepo, recipientRepo, _ := newEmailFlowForTest()

	dispatch := &models.EmailDispatch{
		Subject: "Broadcast",
		Message: "Hello",
		Filter:  models.AudienceFilter{Designation: models.FilterAll, Zone: models.FilterAll, Country: models.FilterAll},
		Status:  models.DispatchStatusCompleted,
	}
	require.NoError(t, dispatchRepo.Save(context.Background(), dispatch))

	errMsg := "Email hard_bounce: mailbox does not exist"
	recipientRepo.add(models.EmailRecipient{DispatchID: dispatch.ID, Email: "ok@example.com", Status: models.RecipientStatusDelivered})
	recipientRepo.add(models.EmailRecipient{DispatchID: dispatch.ID, Email: "bad@example.com", Status: models.RecipientStatusFailed, Error: &errMsg})

	rows, err := flow.Recipients(context.Background(), dispatch.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ok@example.com", rows[0].Address)
	assert.Equal(t, models.RecipientStatusDelivered.String(), rows[0].Status)
	require.NotNil(t, rows[1].Error)
	assert.Equal(t, errMsg, *rows[1].Error)

	_, err = flow.Recipients(context.Background(), 999, 1, 20)
	require.Error(t, err)
	assert.True(t, IsDispatchNotFound(err))
}
