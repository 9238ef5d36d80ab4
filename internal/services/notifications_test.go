package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+59171234567", NormalizePhone("+591 712-345-67"))
	assert.Equal(t, "+59171234567", NormalizePhone("59171234567"))
	assert.Equal(t, "+59171234567", NormalizePhone("(591) 71234567"))
	assert.Equal(t, "", NormalizePhone("abc"))
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("no provider", func(t *testing.T) {
		svc := NewNotificationService(nil, time.UTC, logging.Discard(), nil)
		assert.False(t, svc.SendMessage(ctx, "+59171234567", "hola"))
	})

	t.Run("provider error", func(t *testing.T) {
		svc := NewNotificationService(&fakeSender{fail: true}, time.UTC, logging.Discard(), nil)
		assert.False(t, svc.SendMessage(ctx, "+59171234567", "hola"))
	})

	t.Run("normalises before sending", func(t *testing.T) {
		sender := &fakeSender{}
		svc := NewNotificationService(sender, time.UTC, logging.Discard(), nil)
		require.True(t, svc.SendMessage(ctx, "591 7123 4567", "hola"))
		assert.Equal(t, "+59171234567", sender.messages()[0].To)
	})
}

func TestMessageBodies(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	svc := NewNotificationService(sender, time.UTC, logging.Discard(), nil)
	date := time.Date(2025, 12, 7, 8, 5, 0, 0, time.UTC)

	svc.SendVerificationCode(ctx, "+59171234567", "123456")
	svc.SendPasswordResetCode(ctx, "+59171234567", "654321")
	svc.SendAppointmentConfirmation(ctx, "+59171234567", date, "Juan Pérez")
	svc.SendAppointmentReminder(ctx, "+59171234567", date, "Juan Pérez")

	msgs := sender.messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Tu código de verificación para DIAGNOSIA es: 123456. Válido por 10 minutos.", msgs[0].Body)
	assert.Equal(t, "Tu código para restablecer la contraseña en DIAGNOSIA es: 654321. Válido por 10 minutos.", msgs[1].Body)
	assert.Equal(t, "Su cita médica con Dr. Juan Pérez está confirmada para el domingo, 7 de diciembre de 2025, 08:05. Por favor llegue 10 minutos antes.", msgs[2].Body)
	assert.Equal(t, "Recordatorio: Tiene una cita médica con Dr. Juan Pérez mañana domingo, 7 de diciembre de 2025, 08:05. Por favor confirme su asistencia.", msgs[3].Body)
}

func TestFormatDateUsesLocation(t *testing.T) {
	svc := NewNotificationService(nil, time.FixedZone("BOT", -4*60*60), logging.Discard(), nil)
	got := svc.FormatDate(time.Date(2025, 1, 1, 2, 30, 0, 0, time.UTC))
	assert.Equal(t, "martes, 31 de diciembre de 2024, 22:30", got)
}

func TestTwilioSender(t *testing.T) {
	var gotForm url.Values
	var gotUser, gotPass, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sid":"SM123","status":"queued"}`)
	}))
	defer srv.Close()

	s := NewTwilioSender("AC1", "token", "+15550001111", logging.Discard())
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "+59171234567", "hola"))

	assert.Equal(t, "/Accounts/AC1/Messages.json", gotPath)
	assert.Equal(t, "AC1", gotUser)
	assert.Equal(t, "token", gotPass)
	assert.Equal(t, "+59171234567", gotForm.Get("To"))
	assert.Equal(t, "+15550001111", gotForm.Get("From"))
	assert.Equal(t, "hola", gotForm.Get("Body"))
}

func TestTwilioSender_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":21211,"message":"Invalid 'To' Phone Number"}`)
	}))
	defer srv.Close()

	s := NewTwilioSender("AC1", "token", "+15550001111", logging.Discard())
	s.baseURL = srv.URL
	err := s.Send(context.Background(), "+59171234567", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 21211")

	unconfigured := NewTwilioSender("", "", "", logging.Discard())
	assert.False(t, unconfigured.Configured())
	assert.Error(t, unconfigured.Send(context.Background(), "+59171234567", "hola"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("x")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", Conflict("dup"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))

	cause := errors.New("smtp down")
	err := Unavailable("no disponible", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "service_unavailable", KindOf(err).String())
}
