package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/metrics"
)

// NotificationService formats and sends the SMS messages the API needs.
// Every send reports success as a bool and never returns an error.
type NotificationService struct {
	sender  SMSSender
	loc     *time.Location
	logger  *logging.Logger
	metrics *metrics.Metrics
}

func NewNotificationService(sender SMSSender, loc *time.Location, logger *logging.Logger, m *metrics.Metrics) *NotificationService {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &NotificationService{sender: sender, loc: loc, logger: logger, metrics: m}
}

// NormalizePhone strips every non-digit and prefixes "+".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}

// SendMessage returns true only when the provider accepted the message.
func (s *NotificationService) SendMessage(ctx context.Context, phone, body string) bool {
	to := NormalizePhone(phone)
	masked := logging.MaskPhone(to)
	if s.sender == nil {
		s.logger.Warn("sms not sent: no provider configured", "to", masked)
		s.metrics.ObserveSMS(false)
		return false
	}
	if to == "" {
		s.logger.Warn("sms not sent: empty phone number")
		s.metrics.ObserveSMS(false)
		return false
	}
	if err := s.sender.Send(ctx, to, body); err != nil {
		s.logger.Error("sms send failed", "to", masked, "error", err)
		s.metrics.ObserveSMS(false)
		return false
	}
	s.logger.Info("sms sent", "to", masked)
	s.metrics.ObserveSMS(true)
	return true
}

func (s *NotificationService) SendVerificationCode(ctx context.Context, phone, code string) bool {
	body := fmt.Sprintf("Tu código de verificación para DIAGNOSIA es: %s. Válido por 10 minutos.", code)
	return s.SendMessage(ctx, phone, body)
}

func (s *NotificationService) SendPasswordResetCode(ctx context.Context, phone, code string) bool {
	body := fmt.Sprintf("Tu código para restablecer la contraseña en DIAGNOSIA es: %s. Válido por 10 minutos.", code)
	return s.SendMessage(ctx, phone, body)
}

func (s *NotificationService) SendAppointmentConfirmation(ctx context.Context, phone string, date time.Time, doctorName string) bool {
	body := fmt.Sprintf("Su cita médica con Dr. %s está confirmada para el %s. Por favor llegue 10 minutos antes.",
		doctorName, s.FormatDate(date))
	return s.SendMessage(ctx, phone, body)
}

func (s *NotificationService) SendAppointmentReminder(ctx context.Context, phone string, date time.Time, doctorName string) bool {
	body := fmt.Sprintf("Recordatorio: Tiene una cita médica con Dr. %s mañana %s. Por favor confirme su asistencia.",
		doctorName, s.FormatDate(date))
	return s.SendMessage(ctx, phone, body)
}

var spanishWeekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatDate renders t in the long Bolivian Spanish form,
// e.g. "lunes, 3 de marzo de 2025, 10:00".
func (s *NotificationService) FormatDate(t time.Time) string {
	t = t.In(s.loc)
	return fmt.Sprintf("%s, %d de %s de %d, %02d:%02d",
		spanishWeekdays[t.Weekday()], t.Day(), spanishMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}
