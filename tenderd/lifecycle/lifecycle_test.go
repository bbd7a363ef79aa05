package lifecycle_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tenderd/tenderd/tenderd/lifecycle"
	"github.com/tenderd/tenderd/tenderd/rbac"
	"github.com/tenderd/tenderd/tenderd/rbac/policy"
)

func TestValidateTransition(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		Name     string
		Type     string
		From, To string
		Kind     lifecycle.Kind
		Award    bool
		Invalid  bool
	}{
		{Name: "Submit", Type: rbac.ResourceTender.Type, From: "draft", To: "submitted", Kind: lifecycle.KindForward},
		{Name: "SkipToPending", Type: rbac.ResourceTender.Type, From: "draft", To: "pending", Invalid: true},
		{Name: "SkipToWon", Type: rbac.ResourceTender.Type, From: "submitted", To: "won", Invalid: true},
		{Name: "Win", Type: rbac.ResourceTender.Type, From: "pending", To: "won", Kind: lifecycle.KindForward, Award: true},
		{Name: "AwardDirect", Type: rbac.ResourceTender.Type, From: "pending", To: "awarded", Kind: lifecycle.KindForward, Award: true},
		{Name: "WonToAwarded", Type: rbac.ResourceTender.Type, From: "won", To: "awarded", Kind: lifecycle.KindForward},
		{Name: "Lose", Type: rbac.ResourceTender.Type, From: "pending", To: "lost", Kind: lifecycle.KindForward},
		{Name: "Unsubmit", Type: rbac.ResourceTender.Type, From: "submitted", To: "draft", Kind: lifecycle.KindRollback},
		{Name: "Reopen", Type: rbac.ResourceTender.Type, From: "lost", To: "pending", Kind: lifecycle.KindRollback},
		{Name: "CancelLost", Type: rbac.ResourceTender.Type, From: "lost", To: "cancelled", Kind: lifecycle.KindForward},
		{Name: "RejectLost", Type: rbac.ResourceTender.Type, From: "lost", To: "rejected", Kind: lifecycle.KindForward},
		{Name: "LoseWon", Type: rbac.ResourceTender.Type, From: "won", To: "lost", Invalid: true},
		{Name: "Unaward", Type: rbac.ResourceTender.Type, From: "awarded", To: "pending", Invalid: true},
		{Name: "Unwin", Type: rbac.ResourceTender.Type, From: "won", To: "pending", Invalid: true},
		{Name: "SameStatus", Type: rbac.ResourceTender.Type, From: "draft", To: "draft", Invalid: true},
		{Name: "UnknownStatus", Type: rbac.ResourceTender.Type, From: "draft", To: "archived", Invalid: true},
		{Name: "CancelledTerminal", Type: rbac.ResourceTender.Type, From: "cancelled", To: "draft", Invalid: true},
		{Name: "Hold", Type: rbac.ResourceProject.Type, From: "active", To: "on_hold", Kind: lifecycle.KindForward},
		{Name: "Resume", Type: rbac.ResourceProject.Type, From: "on_hold", To: "active", Kind: lifecycle.KindForward},
		{Name: "ReopenProject", Type: rbac.ResourceProject.Type, From: "completed", To: "active", Kind: lifecycle.KindRollback},
		{Name: "CompleteOnHold", Type: rbac.ResourceProject.Type, From: "on_hold", To: "completed", Invalid: true},
		{Name: "Send", Type: rbac.ResourcePurchaseOrder.Type, From: "draft", To: "sent", Kind: lifecycle.KindForward},
		{Name: "Deliver", Type: rbac.ResourcePurchaseOrder.Type, From: "sent", To: "delivered", Kind: lifecycle.KindForward},
		{Name: "SkipSend", Type: rbac.ResourcePurchaseOrder.Type, From: "draft", To: "delivered", Invalid: true},
		{Name: "UnsendPO", Type: rbac.ResourcePurchaseOrder.Type, From: "sent", To: "draft", Invalid: true},
		{Name: "NoLifecycle", Type: rbac.ResourceClient.Type, From: "a", To: "b", Invalid: true},
	}
	for _, c := range testCases {
		t.Run(c.Name, func(t *testing.T) {
			t.Parallel()
			tr, err := lifecycle.ValidateTransition(c.Type, c.From, c.To)
			if c.Invalid {
				require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.Kind, tr.Kind)
			require.Equal(t, c.Award, tr.Award)
			require.Equal(t, c.From, tr.From)
			require.Equal(t, c.To, tr.To)
		})
	}
}

func TestInvalidTransitionMessage(t *testing.T) {
	t.Parallel()

	_, err := lifecycle.ValidateTransition(rbac.ResourceTender.Type, "draft", "won")
	require.ErrorContains(t, err, `cannot move from "draft" to "won"`)
	require.ErrorContains(t, err, "allowed: cancelled, submitted")
}

func TestRequiredAction(t *testing.T) {
	t.Parallel()

	forward, err := lifecycle.ValidateTransition(rbac.ResourceTender.Type, "draft", "submitted")
	require.NoError(t, err)
	require.Equal(t, policy.ActionUpdate, lifecycle.RequiredAction(forward))

	back, err := lifecycle.ValidateTransition(rbac.ResourceTender.Type, "submitted", "draft")
	require.NoError(t, err)
	require.Equal(t, policy.ActionRollback, lifecycle.RequiredAction(back))
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, lifecycle.Terminal(rbac.ResourceTender.Type, "awarded"))
	require.True(t, lifecycle.Terminal(rbac.ResourceTender.Type, "cancelled"))
	require.False(t, lifecycle.Terminal(rbac.ResourceTender.Type, "lost"))
	require.True(t, lifecycle.Terminal(rbac.ResourcePurchaseOrder.Type, "delivered"))
	require.False(t, lifecycle.Terminal(rbac.ResourceProject.Type, "completed"))
}

func TestOnAward(t *testing.T) {
	t.Parallel()

	tender := lifecycle.TenderSnapshot{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Title:          "Bridge repair",
		ClientName:     "City of Springfield",
		Value:          decimal.RequireFromString("125000.50"),
		Currency:       "EUR",
		Status:         lifecycle.TenderPending,
	}

	project, err := lifecycle.OnAward(tender, lifecycle.TenderAwarded)
	require.NoError(t, err)
	require.Equal(t, tender.ID, project.SourceTenderID)
	require.Equal(t, tender.OrganizationID, project.OrganizationID)
	require.Equal(t, tender.Title, project.Title)
	require.Equal(t, tender.ClientName, project.ClientName)
	require.True(t, tender.Value.Equal(project.Value))
	require.Equal(t, lifecycle.ProjectActive, project.Status)

	_, err = lifecycle.OnAward(tender, lifecycle.TenderLost)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	tender.Status = lifecycle.TenderSubmitted
	_, err = lifecycle.OnAward(tender, lifecycle.TenderWon)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	tender.Status = lifecycle.TenderWon
	_, err = lifecycle.OnAward(tender, lifecycle.TenderAwarded)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}
