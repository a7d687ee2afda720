package businessflow

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/utils"
)

func newReportFlowForTest() (ReportFlow, *mockEmailDispatchRepo, *mockEmailRecipientRepo, *mockChatDispatchRepo, *mockChatRecipientRepo) {
	emailDispatchRepo := newMockEmailDispatchRepo()
	emailRecipientRepo := newMockEmailRecipientRepo()
	chatDispatchRepo := newMockChatDispatchRepo()
	chatRecipientRepo := newMockChatRecipientRepo()
	flow := NewReportFlow(emailDispatchRepo, emailRecipientRepo, chatDispatchRepo, chatRecipientRepo)
	return flow, emailDispatchRepo, emailRecipientRepo, chatDispatchRepo, chatRecipientRepo
}

func TestEmailDispatchReport(t *testing.T) {
	t.Run("DispatchNotFound", func(t *testing.T) {
		flow, _, _, _, _ := newReportFlowForTest()

		_, _, err := flow.EmailDispatchReport(context.Background(), 99)
		require.Error(t, err)
		assert.True(t, IsDispatchNotFound(err))
	})

	t.Run("RejectsUncompletedDispatch", func(t *testing.T) {
		flow, dispatchRepo, _, _, _ := newReportFlowForTest()

		dispatch := &models.EmailDispatch{
			Subject: "Still running",
			Message: "Hello",
			Filter:  models.AudienceFilter{Designation: models.FilterAll, Zone: models.FilterAll, Country: models.FilterAll},
			Status:  models.DispatchStatusProcessing,
		}
		require.NoError(t, dispatchRepo.Save(context.Background(), dispatch))

		_, _, err := flow.EmailDispatchReport(context.Background(), dispatch.ID)
		require.Error(t, err)
		assert.True(t, IsDispatchNotCompleted(err))
	})

	t.Run("GeneratesWorkbook", func(t *testing.T) {
		flow, dispatchRepo, recipientRepo, _, _ := newReportFlowForTest()

		dispatch := &models.EmailDispatch{
			Subject: "Finished",
			Message: "Hello",
			Filter:  models.AudienceFilter{Designation: models.FilterAll, Zone: models.FilterAll, Country: models.FilterAll},
			Status:  models.DispatchStatusCompleted,
		}
		require.NoError(t, dispatchRepo.Save(context.Background(), dispatch))

		now := utils.UTCNow()
		errMsg := "Email hard_bounce: mailbox does not exist"
		recipientRepo.add(models.EmailRecipient{
			DispatchID:  dispatch.ID,
			Email:       "ok@example.com",
			Status:      models.RecipientStatusDelivered,
			DeliveredAt: &now,
		})
		recipientRepo.add(models.EmailRecipient{
			DispatchID: dispatch.ID,
			Email:      "bad@example.com",
			Status:     models.RecipientStatusFailed,
			Error:      &errMsg,
		})

		filename, content, err := flow.EmailDispatchReport(context.Background(), dispatch.ID)
		require.NoError(t, err)
		assert.Contains(t, filename, "email_dispatch_")
		assert.Contains(t, filename, ".xlsx")
		require.NotEmpty(t, content)

		wb, err := excelize.OpenReader(bytes.NewReader(content))
		require.NoError(t, err)
		defer wb.Close()

		rows, err := wb.GetRows("recipients")
		require.NoError(t, err)
		require.Len(t, rows, 3) // header + 2 recipients
		assert.Equal(t, "email", rows[0][1])
		assert.Equal(t, "ok@example.com", rows[1][1])
		assert.Equal(t, "delivered", rows[1][2])
		assert.Equal(t, "bad@example.com", rows[2][1])
		assert.Equal(t, "failed", rows[2][2])
	})
}

func TestChatDispatchReport(t *testing.T) {
	flow, _, _, dispatchRepo, recipientRepo := newReportFlowForTest()

	dispatch := &models.ChatDispatch{
		Title:   "Finished",
		Message: "Hello",
		Filter:  models.AudienceFilter{Designation: models.FilterAll, Zone: models.FilterAll, Country: models.FilterAll},
		Status:  models.DispatchStatusCompleted,
	}
	require.NoError(t, dispatchRepo.Save(context.Background(), dispatch))

	recipientRepo.add(models.ChatRecipient{DispatchID: dispatch.ID, KCUserID: "kc-user-1", Status: models.RecipientStatusDelivered})

	filename, content, err := flow.ChatDispatchReport(context.Background(), dispatch.ID)
	require.NoError(t, err)
	assert.Contains(t, filename, "kingschat_dispatch_")
	require.NotEmpty(t, content)

	wb, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("recipients")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "kc_user_id", rows[0][1])
	assert.Equal(t, "kc-user-1", rows[1][1])
}
