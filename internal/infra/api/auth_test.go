//go:build !integration

package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-engine/internal/domain"
	"activity-engine/internal/domain/model"
	"activity-engine/internal/validation"
)

func TestAuthManager_MintParse(t *testing.T) {
	am := NewAuthManager(testAuthConfig())
	id := uuid.NewString()

	tok, err := am.Mint(id)
	require.NoError(t, err)

	got, err := am.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = am.Mint("")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAuthManager_Rejects(t *testing.T) {
	id := uuid.NewString()

	t.Run("expired", func(t *testing.T) {
		am := NewAuthManager(testAuthConfig())
		am.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, err := am.Mint(id)
		require.NoError(t, err)

		am.now = time.Now
		_, err = am.Parse(tok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("other secret", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.JWTSecret = "another-secret"
		tok, err := NewAuthManager(cfg).Mint(id)
		require.NoError(t, err)

		_, err = NewAuthManager(testAuthConfig()).Parse(tok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("other issuer", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.Issuer = "someone-else"
		tok, err := NewAuthManager(cfg).Mint(id)
		require.NoError(t, err)

		_, err = NewAuthManager(testAuthConfig()).Parse(tok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := NewAuthManager(testAuthConfig()).Parse("not.a.jwt")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestAuthenticator_Authenticate(t *testing.T) {
	u, err := model.NewUser(uuid.NewString(), "Bo", "bo@example.com")
	require.NoError(t, err)
	u.PlanType = model.PlanSingle
	u.RemainingActivityCount = 2

	am := NewAuthManager(testAuthConfig())
	auth := NewAuthenticator(am, newMockUserUC(u))
	tok, err := am.Mint(u.ID)
	require.NoError(t, err)

	actor, err := auth.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor.ID)
	assert.Equal(t, model.PlanSingle, actor.PlanType)
	assert.Equal(t, 2, actor.RemainingActivityCount)

	_, err = auth.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrUnauthorized, 401},
		{domain.ErrForbidden, 403},
		{domain.ErrNoEntitlement, 403},
		{domain.ErrActivityNotFound, 404},
		{domain.ErrPaymentNotFound, 404},
		{domain.ErrUserNotFound, 404},
		{domain.ErrAlreadyParticipant, 409},
		{domain.ErrNotParticipant, 409},
		{domain.ErrActivityFull, 409},
		{domain.ErrAlreadyPaid, 409},
		{domain.ErrPaymentNotCompleted, 402},
		{domain.ErrPaymentRequired, 402},
		{domain.ErrUploadFailed, 500},
		{domain.ErrGatewayFailure, 500},
		{domain.ErrInvalidArgument, 400},
		{domain.ErrActivityFree, 400},
		{domain.ErrResourceBusy, 429},
		{&validation.Error{Fields: map[string]string{"title": "is required"}}, 400},
		{errors.New("boom"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.code, statusFor(tc.err))
			// wrapping must not change the mapping
			assert.Equal(t, tc.code, statusFor(errors.Join(errors.New("context"), tc.err)))
		})
	}
}
