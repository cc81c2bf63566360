package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/leadcrm/internal/apiclient"
	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/domain"
	"github.com/spec-kit/leadcrm/internal/leads"
	"github.com/spec-kit/leadcrm/internal/persistence"
	"github.com/spec-kit/leadcrm/internal/session"
	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// appTransport serves client requests from the fiber app without a socket.
type appTransport struct {
	app *fiber.App
}

func (t appTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.app.Test(req, -1)
}

type clientStack struct {
	client  *apiclient.Client
	manager *session.Manager
	leads   *leads.Store
}

func newClientStack(sb *testSandbox, store persistence.KeyValueStore) clientStack {
	client := apiclient.New("http://sandbox.test/api", apiclient.WithHTTPClient(&http.Client{Transport: appTransport{app: sb.App}}))
	manager := session.New(client, store)
	client.SetTokenSource(manager)
	client.OnUnauthorized(manager.HandleUnauthorized)
	return clientStack{client: client, manager: manager, leads: leads.NewStore(client, manager, nil)}
}

func TestEndToEnd_AgentSession(t *testing.T) {
	ctx := context.Background()
	sb := newTestSandbox(t, nil)
	store := persistence.NewMemoryStore()
	stack := newClientStack(sb, store)

	state := stack.manager.Initialize(ctx)
	assert.False(t, state.IsAuthenticated)
	assert.Equal(t, session.PhaseUnauthenticated, state.Phase)

	_, err := stack.manager.Login(ctx, "agent@example.com", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", stack.manager.Snapshot().LastError)

	user, err := stack.manager.Login(ctx, "agent@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, sb.agent.ID, user.ID)
	assert.True(t, auth.HasPermission(stack.manager.CurrentUser(), auth.ResourceLeads, auth.ActionCreate))

	created, err := stack.leads.Create(ctx, domain.NewLead{
		Name:         "Jane Buyer",
		PrimaryPhone: "555-0101",
		PrimaryEmail: "jane@example.com",
		PropertyType: domain.PropertyResidential,
		Source:       domain.SourceReferral,
		Status:       domain.StatusNew,
		LeadScore:    domain.ScoreHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, sb.agent.ID, created.AssignedAgent)

	fetched, err := stack.leads.Fetch(ctx, domain.LeadFilters{})
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	withCall, err := stack.leads.AddActivity(ctx, created.ID, domain.NewActivity{Type: domain.ActivityCall, Description: "Intro call"})
	require.NoError(t, err)
	require.Len(t, withCall.Activities, 1)

	err = stack.leads.Delete(ctx, created.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePermissionDenied))

	name := "Alan T."
	updated, err := stack.manager.UpdateProfile(ctx, domain.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alan T.", updated.Name)
	assert.Equal(t, "Alan T.", stack.manager.CurrentUser().Name)

	resumed := newClientStack(sb, store)
	state = resumed.manager.Initialize(ctx)
	require.True(t, state.IsAuthenticated)
	assert.Equal(t, "Alan T.", state.User.Name)

	stack.manager.Logout(ctx)
	assert.False(t, stack.manager.Snapshot().IsAuthenticated)
	_, ok, err := store.Get(ctx, persistence.KeyUserToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndToEnd_RevokedTokenInvalidatesSession(t *testing.T) {
	ctx := context.Background()
	sb := newTestSandbox(t, nil)
	store := persistence.NewMemoryStore()
	stack := newClientStack(sb, store)
	stack.manager.Initialize(ctx)

	_, err := stack.manager.Login(ctx, "admin@example.com", testPassword)
	require.NoError(t, err)

	token, err := stack.manager.Token(ctx)
	require.NoError(t, err)
	claims, err := sb.Auth.TokenManager().ParseToken(token)
	require.NoError(t, err)
	require.NoError(t, sb.Auth.Logout(ctx, claims))

	_, err = stack.leads.Fetch(ctx, domain.LeadFilters{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	snap := stack.manager.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	_, ok, err := store.Get(ctx, persistence.KeyUserData)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEndToEnd_AdminAgentsAndGoogle(t *testing.T) {
	ctx := context.Background()
	sb := newTestSandbox(t, nil)
	stack := newClientStack(sb, persistence.NewMemoryStore())
	stack.manager.Initialize(ctx)

	_, err := stack.manager.Login(ctx, "admin@example.com", testPassword)
	require.NoError(t, err)

	agents, err := stack.leads.Agents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	authURL, err := stack.manager.ConnectGoogle(ctx)
	require.NoError(t, err)
	assert.Contains(t, authURL, "client_id=client-id")
	assert.False(t, stack.manager.CurrentUser().GoogleConnected())
}
