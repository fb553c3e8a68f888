package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/internal/auth"
	"github.com/bloodlink/internal/model"
	repomem "github.com/bloodlink/internal/repository/memory"
	storagemem "github.com/bloodlink/internal/storage/memory"
)

type captureMailer struct {
	to    string
	token string
}

func (m *captureMailer) SendResetToken(_ context.Context, to, token string) error {
	m.to = to
	m.token = token
	return nil
}

func newService() (*auth.Service, *captureMailer) {
	mailer := &captureMailer{}
	return auth.NewService(repomem.NewUserStore(), storagemem.New(), mailer), mailer
}

func validParams() auth.RegisterParams {
	return auth.RegisterParams{
		Email:      "Alice@Example.com",
		Password:   "correct horse",
		Name:       "Alice",
		BloodGroup: "A+",
		Age:        30,
	}
}

func TestRegisterOpensSession(t *testing.T) {
	svc, _ := newService()
	sess, err := svc.Register(context.Background(), validParams())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.NotEmpty(t, sess.SessionSecret)
	require.NotNil(t, sess.User)
	assert.Equal(t, "Alice", sess.User.Name)
	assert.Equal(t, model.AvailabilityUnavailable, sess.User.Availability)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validParams())
	require.NoError(t, err)

	again := validParams()
	again.Email = "alice@example.com"
	_, err = svc.Register(ctx, again)
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	weak := validParams()
	weak.Password = "short"
	_, err := svc.Register(ctx, weak)
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	bad := validParams()
	bad.Email = "not-an-email"
	_, err = svc.Register(ctx, bad)
	assert.ErrorIs(t, err, auth.ErrInvalidEmail)

	group := validParams()
	group.BloodGroup = "C+"
	_, err = svc.Register(ctx, group)
	assert.Error(t, err)
}

func TestLoginWrongEmailAndWrongPasswordLookAlike(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validParams())
	require.NoError(t, err)

	_, errWrongPassword := svc.Login(ctx, "alice@example.com", "nope nope nope")
	_, errUnknownEmail := svc.Login(ctx, "nobody@example.com", "whatever pass")
	assert.ErrorIs(t, errWrongPassword, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownEmail, auth.ErrInvalidCredentials)
}

func TestLoginEmailIsCaseInsensitive(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validParams())
	require.NoError(t, err)

	sess, err := svc.Login(ctx, "ALICE@example.COM", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, mailer := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, validParams())
	require.NoError(t, err)

	require.NoError(t, svc.RequestReset(ctx, "alice@example.com"))
	assert.Equal(t, "alice@example.com", mailer.to)
	require.NotEmpty(t, mailer.token)

	err = svc.ResetPassword(ctx, "alice@example.com", "WRONG123", "new password")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	require.NoError(t, svc.ResetPassword(ctx, "alice@example.com", mailer.token, "new password"))

	_, err = svc.Login(ctx, "alice@example.com", "correct horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "alice@example.com", "new password")
	assert.NoError(t, err)

	// The token is single use.
	err = svc.ResetPassword(ctx, "alice@example.com", mailer.token, "another password")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	svc, mailer := newService()
	require.NoError(t, svc.RequestReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, mailer.token)
}
