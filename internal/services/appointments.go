package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/diagnosia-api/internal/logging"
	"github.com/harentsoaR/diagnosia-api/internal/models"
	"github.com/harentsoaR/diagnosia-api/internal/repository"
)

type PaymentInput struct {
	Amount *float64
	Method string
}

type CreateAppointmentInput struct {
	DoctorID primitive.ObjectID
	Date     time.Time
	Type     string
	Reason   string
	Symptoms []string
	Notes    string
	Payment  *PaymentInput
}

// AppointmentPatch holds the fields a participant may change; nil means unchanged.
type AppointmentPatch struct {
	Date          *time.Time
	Type          *string
	Reason        *string
	Symptoms      *[]string
	Notes         *string
	Status        *string
	AIPreAnalysis *string
}

type Income struct {
	TotalIncome  float64              `json:"totalIncome"`
	Appointments []models.Appointment `json:"appointments"`
}

type AppointmentService struct {
	users        repository.UserRepository
	appointments repository.AppointmentRepository
	notifier     *NotificationService
	events       EventPublisher
	logger       *logging.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewAppointmentService(
	users repository.UserRepository,
	appointments repository.AppointmentRepository,
	notifier *NotificationService,
	events EventPublisher,
	loc *time.Location,
	logger *logging.Logger,
) *AppointmentService {
	if logger == nil {
		logger = logging.Default()
	}
	if events == nil {
		events = NoopPublisher{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentService{
		users:        users,
		appointments: appointments,
		notifier:     notifier,
		events:       events,
		logger:       logger,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *AppointmentService) WithClock(now func() time.Time) *AppointmentService {
	s.now = now
	return s
}

func cleanSymptoms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, sym := range in {
		if sym = strings.TrimSpace(sym); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func (s *AppointmentService) Create(ctx context.Context, requester *models.User, in CreateAppointmentInput) (*models.AppointmentView, error) {
	if requester == nil || requester.Role != models.RolePatient {
		return nil, Forbidden("Solo los pacientes pueden programar citas")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, BadRequest("El motivo de la cita es obligatorio")
	}
	aptType := models.AppointmentType(strings.TrimSpace(in.Type))
	if !aptType.Valid() {
		return nil, BadRequest("El tipo de cita debe ser virtual o presential")
	}
	if in.Date.IsZero() {
		return nil, BadRequest("La fecha de la cita es obligatoria")
	}

	doctor, err := s.users.FindByID(ctx, in.DoctorID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && doctor.Role != models.RoleDoctor) {
		return nil, BadRequest("Médico no válido")
	}
	if err != nil {
		return nil, Internal("Error al programar la cita", err)
	}

	now := s.now()
	apt := &models.Appointment{
		ID:        primitive.NewObjectID(),
		PatientID: requester.ID,
		DoctorID:  doctor.ID,
		Date:      in.Date,
		Type:      aptType,
		Status:    models.StatusScheduled,
		Reason:    reason,
		Symptoms:  cleanSymptoms(in.Symptoms),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p := in.Payment; p != nil {
		method := models.PaymentMethod(p.Method)
		if !method.Valid() {
			return nil, BadRequest("Método de pago inválido")
		}
		if p.Amount != nil && *p.Amount < 0 {
			return nil, BadRequest("El monto no puede ser negativo")
		}
		apt.Payment = &models.Payment{Amount: p.Amount, Status: models.PaymentPending, Method: method}
	}

	if err := s.appointments.Create(ctx, apt); err != nil {
		return nil, Internal("Error al programar la cita", err)
	}

	if requester.Phone != "" {
		s.notifier.SendAppointmentConfirmation(ctx, requester.Phone, apt.Date, doctor.FullName())
	}
	s.publish(ctx, EventAppointmentCreated, apt)

	return &models.AppointmentView{Appointment: *apt, Patient: requester.Summary(), Doctor: doctor.Summary()}, nil
}

func (s *AppointmentService) Get(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	apt, err := s.appointments.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("Cita no encontrada")
	}
	if err != nil {
		return nil, Internal("Error al obtener la cita", err)
	}
	return apt, nil
}

// GetView returns the appointment with its participants resolved. Only the
// participants and admins may read it.
func (s *AppointmentService) GetView(ctx context.Context, requester *models.User, id primitive.ObjectID) (*models.AppointmentView, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if requester.Role != models.RoleAdmin && !apt.IsParticipant(requester.ID) {
		return nil, Forbidden("No autorizado para ver esta cita")
	}
	views, err := s.populate(ctx, []models.Appointment{*apt})
	if err != nil {
		return nil, Internal("Error al obtener la cita", err)
	}
	return &views[0], nil
}

func (s *AppointmentService) ListFor(ctx context.Context, userID primitive.ObjectID) ([]models.AppointmentView, error) {
	apts, err := s.appointments.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, Internal("Error al obtener las citas", err)
	}
	views, err := s.populate(ctx, apts)
	if err != nil {
		return nil, Internal("Error al obtener las citas", err)
	}
	return views, nil
}

func (s *AppointmentService) ListForPatient(ctx context.Context, patientID primitive.ObjectID) ([]models.AppointmentView, error) {
	apts, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, Internal("Error al obtener las citas", err)
	}
	views, err := s.populate(ctx, apts)
	if err != nil {
		return nil, Internal("Error al obtener las citas", err)
	}
	return views, nil
}

// Update applies patch on behalf of a participant. Status changes must be
// allowed by CanTransition; other fields stay editable on terminal
// appointments.
func (s *AppointmentService) Update(ctx context.Context, requesterID, id primitive.ObjectID, patch AppointmentPatch) (*models.AppointmentView, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !apt.IsParticipant(requesterID) {
		return nil, Forbidden("No autorizado para modificar esta cita")
	}

	dateChanged := false
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return nil, BadRequest("Fecha inválida")
		}
		dateChanged = !patch.Date.Equal(apt.Date)
		apt.Date = *patch.Date
	}
	if patch.Type != nil {
		t := models.AppointmentType(*patch.Type)
		if !t.Valid() {
			return nil, BadRequest("El tipo de cita debe ser virtual o presential")
		}
		apt.Type = t
	}
	if patch.Reason != nil {
		r := strings.TrimSpace(*patch.Reason)
		if r == "" {
			return nil, BadRequest("El motivo de la cita es obligatorio")
		}
		apt.Reason = r
	}
	if patch.Symptoms != nil {
		apt.Symptoms = cleanSymptoms(*patch.Symptoms)
	}
	if patch.Notes != nil {
		apt.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.AIPreAnalysis != nil {
		apt.AIPreAnalysis = *patch.AIPreAnalysis
	}
	event := EventAppointmentUpdated
	if patch.Status != nil {
		next := models.AppointmentStatus(*patch.Status)
		if !next.Valid() {
			return nil, BadRequest("Estado inválido")
		}
		if !apt.Status.CanTransition(next) {
			return nil, BadRequest("No se puede cambiar el estado de una cita " + string(apt.Status))
		}
		if next == models.StatusCancelled && apt.Status != next {
			event = EventAppointmentCancelled
		}
		apt.Status = next
	}

	apt.UpdatedAt = s.now()
	if err := s.appointments.Update(ctx, apt); err != nil {
		return nil, Internal("Error al actualizar la cita", err)
	}

	views, err := s.populate(ctx, []models.Appointment{*apt})
	if err != nil {
		return nil, Internal("Error al actualizar la cita", err)
	}
	view := &views[0]
	if dateChanged && view.Patient != nil && view.Patient.Phone != "" && view.Doctor != nil {
		s.notifier.SendAppointmentConfirmation(ctx, view.Patient.Phone, apt.Date, doctorName(view.Doctor))
	}
	s.publish(ctx, event, apt)
	return view, nil
}

// Cancel is tolerated on an already cancelled appointment and returns it
// unchanged. Completed and no-show appointments cannot be cancelled.
func (s *AppointmentService) Cancel(ctx context.Context, requesterID, id primitive.ObjectID) (*models.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !apt.IsParticipant(requesterID) {
		return nil, Forbidden("No autorizado para cancelar esta cita")
	}
	switch apt.Status {
	case models.StatusCancelled:
		return apt, nil
	case models.StatusCompleted, models.StatusNoShow:
		return nil, BadRequest("No se puede cancelar una cita " + string(apt.Status))
	}

	apt.Status = models.StatusCancelled
	apt.UpdatedAt = s.now()
	if err := s.appointments.Update(ctx, apt); err != nil {
		return nil, Internal("Error al cancelar la cita", err)
	}
	s.publish(ctx, EventAppointmentCancelled, apt)
	return apt, nil
}

// TodaysAppointments covers [start of today, start of tomorrow) in the
// service's location.
func (s *AppointmentService) TodaysAppointments(ctx context.Context, doctorID primitive.ObjectID) ([]models.AppointmentView, error) {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	apts, err := s.appointments.ListByDoctorBetween(ctx, doctorID, start, end)
	if err != nil {
		return nil, Internal("Error al obtener las citas del día", err)
	}
	views, err := s.populate(ctx, apts)
	if err != nil {
		return nil, Internal("Error al obtener las citas del día", err)
	}
	return views, nil
}

// CompletedIncome sums payment amounts over the doctor's completed payments.
// A missing amount counts as zero.
func (s *AppointmentService) CompletedIncome(ctx context.Context, doctorID primitive.ObjectID) (*Income, error) {
	apts, err := s.appointments.ListByDoctorAndPaymentStatus(ctx, doctorID, models.PaymentCompleted)
	if err != nil {
		return nil, Internal("Error al obtener los ingresos", err)
	}
	income := &Income{Appointments: apts}
	for i := range apts {
		income.TotalIncome += apts[i].Payment.AmountOrZero()
	}
	return income, nil
}

// PaymentQR is the payload a client renders as a QR code for one appointment.
type PaymentQR struct {
	AppointmentID string  `json:"appointmentId"`
	Amount        float64 `json:"amount"`
	Reference     string  `json:"reference"`
	QRData        string  `json:"qrData"`
}

// payable loads an appointment a participant may still pay for.
func (s *AppointmentService) payable(ctx context.Context, requesterID, id primitive.ObjectID, amount float64) (*models.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !apt.IsParticipant(requesterID) {
		return nil, Forbidden("No autorizado para pagar esta cita")
	}
	if amount <= 0 {
		return nil, BadRequest("El monto debe ser mayor a cero")
	}
	if apt.Status == models.StatusCancelled {
		return nil, BadRequest("No se puede pagar una cita cancelada")
	}
	if apt.Payment != nil && apt.Payment.Status == models.PaymentCompleted {
		return nil, Conflict("La cita ya está pagada")
	}
	return apt, nil
}

// GeneratePaymentQR records a pending QR payment under a fresh reference and
// returns the data to encode. The payment completes only when the doctor
// confirms it.
func (s *AppointmentService) GeneratePaymentQR(ctx context.Context, requesterID, id primitive.ObjectID, amount float64) (*PaymentQR, error) {
	apt, err := s.payable(ctx, requesterID, id, amount)
	if err != nil {
		return nil, err
	}

	reference := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	apt.Payment = &models.Payment{Amount: &amount, Status: models.PaymentPending, Method: models.MethodQR, TransactionID: reference}
	apt.UpdatedAt = s.now()
	if err := s.appointments.Update(ctx, apt); err != nil {
		return nil, Internal("Error al generar el código QR", err)
	}
	return &PaymentQR{
		AppointmentID: apt.ID.Hex(),
		Amount:        amount,
		Reference:     reference,
		QRData:        fmt.Sprintf("qr:DIAGNOSIA:%s:%s:%.2f", apt.ID.Hex(), reference, amount),
	}, nil
}

// ProcessPayment records a payment on the appointment. Every payment starts
// pending; the patient's transaction id is stored for the doctor to check and
// does not complete the payment on its own.
func (s *AppointmentService) ProcessPayment(ctx context.Context, requesterID, id primitive.ObjectID, amount float64, method, transactionID string) (*models.Appointment, error) {
	m := models.PaymentMethod(method)
	if !m.Valid() {
		return nil, BadRequest("Método de pago inválido")
	}
	apt, err := s.payable(ctx, requesterID, id, amount)
	if err != nil {
		return nil, err
	}

	apt.Payment = &models.Payment{
		Amount:        &amount,
		Status:        models.PaymentPending,
		Method:        m,
		TransactionID: strings.TrimSpace(transactionID),
	}
	apt.UpdatedAt = s.now()
	if err := s.appointments.Update(ctx, apt); err != nil {
		return nil, Internal("Error al procesar el pago", err)
	}
	return apt, nil
}

// ConfirmPayment lets the appointment's doctor mark a pending cash or QR
// payment completed. Confirming a completed payment is a no-op.
func (s *AppointmentService) ConfirmPayment(ctx context.Context, doctorID, id primitive.ObjectID) (*models.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != doctorID {
		return nil, Forbidden("Solo el médico de la cita puede confirmar el pago")
	}
	if apt.Payment == nil {
		return nil, BadRequest("La cita no tiene un pago registrado")
	}
	if apt.Payment.Status == models.PaymentCompleted {
		return apt, nil
	}
	if !apt.Payment.Method.Valid() {
		return nil, BadRequest("Método de pago inválido")
	}

	apt.Payment.Status = models.PaymentCompleted
	apt.UpdatedAt = s.now()
	if err := s.appointments.Update(ctx, apt); err != nil {
		return nil, Internal("Error al confirmar el pago", err)
	}
	s.publish(ctx, EventAppointmentPaid, apt)
	return apt, nil
}

// PaymentHistory lists the patient's appointments that carry a payment.
func (s *AppointmentService) PaymentHistory(ctx context.Context, patientID primitive.ObjectID) ([]models.AppointmentView, error) {
	apts, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, Internal("Error al obtener los pagos", err)
	}
	paid := make([]models.Appointment, 0, len(apts))
	for _, a := range apts {
		if a.Payment != nil {
			paid = append(paid, a)
		}
	}
	views, err := s.populate(ctx, paid)
	if err != nil {
		return nil, Internal("Error al obtener los pagos", err)
	}
	return views, nil
}

// SharesAppointment reports whether the doctor has ever had an appointment
// with the patient.
func (s *AppointmentService) SharesAppointment(ctx context.Context, patientID, doctorID primitive.ObjectID) (bool, error) {
	return s.appointments.ExistsBetween(ctx, patientID, doctorID)
}

// populate resolves participant references with one batched lookup.
// Missing users leave the corresponding field nil.
func (s *AppointmentService) populate(ctx context.Context, apts []models.Appointment) ([]models.AppointmentView, error) {
	seen := make(map[primitive.ObjectID]bool)
	ids := make([]primitive.ObjectID, 0, len(apts)*2)
	for _, a := range apts {
		for _, id := range []primitive.ObjectID{a.PatientID, a.DoctorID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}

	views := make([]models.AppointmentView, 0, len(apts))
	for _, a := range apts {
		views = append(views, models.AppointmentView{
			Appointment: a,
			Patient:     byID[a.PatientID],
			Doctor:      byID[a.DoctorID],
		})
	}
	return views, nil
}

func (s *AppointmentService) publish(ctx context.Context, t EventType, apt *models.Appointment) {
	if err := s.events.Publish(ctx, newAppointmentEvent(t, apt, s.now())); err != nil {
		s.logger.Warn("appointment event not published", "event", t, "appointment_id", apt.ID.Hex(), "error", err)
	}
}

func doctorName(d *models.UserSummary) string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}
