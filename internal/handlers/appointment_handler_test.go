package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/diagnosia-api/internal/models"
)

func tomorrowAt10() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func TestAppointmentLifecycle(t *testing.T) {
	api := newTestAPI(t, false)
	patient, patientToken := api.seedUser(models.RolePatient, "Ana", "+59171234567")
	doctor, doctorToken := api.seedUser(models.RoleDoctor, "Bruno", "+59170000002")
	_, outsiderToken := api.seedUser(models.RolePatient, "Eva", "+59170000003")

	rec := api.json(http.MethodPost, "/api/v1/patients/appointments", patientToken, map[string]any{
		"doctorId": doctor.ID.Hex(),
		"date":     tomorrowAt10().Format(time.RFC3339),
		"type":     "virtual",
		"reason":   "checkup",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[models.AppointmentView](t, rec)
	assert.Equal(t, models.StatusScheduled, created.Status)
	assert.Equal(t, patient.ID, created.PatientID)
	require.NotNil(t, created.Doctor)
	assert.Equal(t, "Bruno", created.Doctor.FirstName)
	assert.Contains(t, api.sender.last(), "Bruno Test", "confirmation SMS names the doctor")

	path := "/api/v1/appointments/" + created.ID.Hex()

	t.Run("outsider cannot read or modify", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, api.json(http.MethodGet, path, outsiderToken, nil).Code)
		assert.Equal(t, http.StatusForbidden, api.json(http.MethodPut, path, outsiderToken, map[string]string{"reason": "x"}).Code)
		assert.Equal(t, http.StatusForbidden, api.json(http.MethodPut, path+"/cancel", outsiderToken, nil).Code)
	})

	t.Run("doctor cancels", func(t *testing.T) {
		rec := api.json(http.MethodPut, path+"/cancel", doctorToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		apt := decodeData[models.Appointment](t, rec)
		assert.Equal(t, models.StatusCancelled, apt.Status)
	})

	t.Run("repeated cancel is tolerated", func(t *testing.T) {
		rec := api.json(http.MethodPut, path+"/cancel", patientToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.StatusCancelled, decodeData[models.Appointment](t, rec).Status)
	})

	t.Run("patient may still edit non-status fields", func(t *testing.T) {
		rec := api.json(http.MethodPut, path, patientToken, map[string]string{"reason": "control anual"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		view := decodeData[models.AppointmentView](t, rec)
		assert.Equal(t, "control anual", view.Reason)
		assert.Equal(t, models.StatusCancelled, view.Status)
	})

	t.Run("status cannot leave a terminal state", func(t *testing.T) {
		rec := api.json(http.MethodPut, path, patientToken, map[string]string{"status": "scheduled"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("both participants list it", func(t *testing.T) {
		for _, token := range []string{patientToken, doctorToken} {
			views := decodeData[[]models.AppointmentView](t, api.json(http.MethodGet, "/api/v1/appointments", token, nil))
			require.Len(t, views, 1)
			assert.Equal(t, created.ID, views[0].ID)
		}
		views := decodeData[[]models.AppointmentView](t, api.json(http.MethodGet, "/api/v1/appointments", outsiderToken, nil))
		assert.Empty(t, views)
	})
}

func TestCreateAppointmentValidation(t *testing.T) {
	api := newTestAPI(t, false)
	_, patientToken := api.seedUser(models.RolePatient, "Ana", "+59171234567")
	doctor, doctorToken := api.seedUser(models.RoleDoctor, "Bruno", "+59170000002")
	other, _ := api.seedUser(models.RolePatient, "Eva", "+59170000003")

	valid := func() map[string]any {
		return map[string]any{
			"doctorId": doctor.ID.Hex(),
			"date":     tomorrowAt10().Format(time.RFC3339),
			"type":     "presential",
			"reason":   "dolor de cabeza",
		}
	}
	with := func(k string, v any) map[string]any {
		b := valid()
		b[k] = v
		return b
	}

	tests := []struct {
		name   string
		token  string
		body   map[string]any
		status int
	}{
		{"doctor cannot book", doctorToken, valid(), http.StatusForbidden},
		{"bad doctor id", patientToken, with("doctorId", "nope"), http.StatusBadRequest},
		{"doctor is a patient", patientToken, with("doctorId", other.ID.Hex()), http.StatusBadRequest},
		{"bad date", patientToken, with("date", "mañana"), http.StatusBadRequest},
		{"bad type", patientToken, with("type", "phone"), http.StatusBadRequest},
		{"missing reason", patientToken, with("reason", " "), http.StatusBadRequest},
		{"bad payment method", patientToken, with("payment", map[string]any{"method": "card"}), http.StatusBadRequest},
		{"valid via generic route", patientToken, valid(), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.json(http.MethodPost, "/api/v1/appointments", tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, http.StatusBadRequest, api.json(http.MethodGet, "/api/v1/appointments/not-an-id", patientToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.json(http.MethodGet, "/api/v1/appointments/"+other.ID.Hex(), patientToken, nil).Code)
}

func TestPaymentsAndIncome(t *testing.T) {
	api := newTestAPI(t, false)
	_, patientToken := api.seedUser(models.RolePatient, "Ana", "+59171234567")
	doctor, doctorToken := api.seedUser(models.RoleDoctor, "Bruno", "+59170000002")

	book := func(method string) string {
		rec := api.json(http.MethodPost, "/api/v1/patients/appointments", patientToken, map[string]any{
			"doctorId": doctor.ID.Hex(),
			"date":     tomorrowAt10().Format(time.RFC3339),
			"type":     "virtual",
			"reason":   "control",
			"payment":  map[string]any{"method": method},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decodeData[models.AppointmentView](t, rec).ID.Hex()
	}
	qrID := book("qr")
	cashID := book("cash")

	type income struct {
		TotalIncome  float64 `json:"totalIncome"`
		Appointments []any   `json:"appointments"`
	}
	doctorIncome := func() income {
		return decodeData[income](t, api.json(http.MethodGet, "/api/v1/doctors/income", doctorToken, nil))
	}

	// the patient's transaction id alone leaves the payment pending
	rec := api.json(http.MethodPost, "/api/v1/payments/process", patientToken, map[string]any{
		"appointmentId": qrID, "amount": 150.0, "method": "qr", "transactionId": "TX-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PaymentPending, decodeData[models.Appointment](t, rec).Payment.Status)

	rec = api.json(http.MethodPost, "/api/v1/payments/process", patientToken, map[string]any{
		"appointmentId": cashID, "amount": 80.0, "method": "cash",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PaymentPending, decodeData[models.Appointment](t, rec).Payment.Status)

	assert.Zero(t, doctorIncome().TotalIncome)

	confirmPath := "/api/v1/payments/" + qrID + "/confirm-cash"
	assert.Equal(t, http.StatusForbidden, api.json(http.MethodPut, confirmPath, patientToken, nil).Code)
	rec = api.json(http.MethodPut, confirmPath, doctorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.PaymentCompleted, decodeData[models.Appointment](t, rec).Payment.Status)

	got := doctorIncome()
	assert.InDelta(t, 150.0, got.TotalIncome, 0.001)
	assert.Len(t, got.Appointments, 1)

	rec = api.json(http.MethodPost, "/api/v1/payments/process", patientToken, map[string]any{
		"appointmentId": qrID, "amount": 150.0, "method": "qr", "transactionId": "TX-2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.json(http.MethodPut, "/api/v1/payments/"+cashID+"/confirm", doctorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 230.0, doctorIncome().TotalIncome, 0.001)

	history := decodeData[[]models.AppointmentView](t, api.json(http.MethodGet, "/api/v1/patients/payments", patientToken, nil))
	assert.Len(t, history, 2)
}

func TestGeneratePaymentQR(t *testing.T) {
	api := newTestAPI(t, false)
	_, patientToken := api.seedUser(models.RolePatient, "Ana", "+59171234567")
	_, strangerToken := api.seedUser(models.RolePatient, "Zoe", "+59170000009")
	doctor, doctorToken := api.seedUser(models.RoleDoctor, "Bruno", "+59170000002")

	rec := api.json(http.MethodPost, "/api/v1/patients/appointments", patientToken, map[string]any{
		"doctorId": doctor.ID.Hex(),
		"date":     tomorrowAt10().Format(time.RFC3339),
		"type":     "virtual",
		"reason":   "control",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	aptID := decodeData[models.AppointmentView](t, rec).ID.Hex()

	path := "/api/v1/payments/generate-qr"
	assert.Equal(t, http.StatusUnauthorized, api.json(http.MethodPost, path, "", map[string]any{"appointmentId": aptID, "amount": 120.0}).Code)
	assert.Equal(t, http.StatusBadRequest, api.json(http.MethodPost, path, patientToken, map[string]any{"appointmentId": "nope", "amount": 120.0}).Code)
	assert.Equal(t, http.StatusBadRequest, api.json(http.MethodPost, path, patientToken, map[string]any{"appointmentId": aptID}).Code)
	assert.Equal(t, http.StatusForbidden, api.json(http.MethodPost, path, strangerToken, map[string]any{"appointmentId": aptID, "amount": 120.0}).Code)

	rec = api.json(http.MethodPost, path, patientToken, map[string]any{"appointmentId": aptID, "amount": 120.0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	qr := decodeData[struct {
		AppointmentID string  `json:"appointmentId"`
		Amount        float64 `json:"amount"`
		Reference     string  `json:"reference"`
		QRData        string  `json:"qrData"`
	}](t, rec)
	assert.Equal(t, aptID, qr.AppointmentID)
	assert.InDelta(t, 120.0, qr.Amount, 0.001)
	assert.NotEmpty(t, qr.Reference)
	assert.True(t, strings.HasPrefix(qr.QRData, "qr:"), qr.QRData)
	assert.Contains(t, qr.QRData, qr.Reference)

	rec = api.json(http.MethodPut, "/api/v1/payments/"+aptID+"/confirm", doctorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeData[models.Appointment](t, rec)
	assert.Equal(t, models.PaymentCompleted, paid.Payment.Status)
	assert.Equal(t, qr.Reference, paid.Payment.TransactionID)

	assert.Equal(t, http.StatusConflict, api.json(http.MethodPost, path, patientToken, map[string]any{"appointmentId": aptID, "amount": 120.0}).Code)
}
