package booking

import (
	"context"

	"fmt"
	"testing"
	"time"

	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db *gorm.DB

	cardiology model.Department
	general    model.Department

	admin        model.User
	doctorUser   model.User
	doctor2User  model.User
	patientUser  model.User
	patient2User model.User

	doctor   model.Doctor
	doctor2  model.Doctor
	patient  model.Patient
	patient2 model.Patient
}

// newFixture opens a migrated in-memory DB with one connection, so workflow
// transactions run serially as they would under row locks.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_booking_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, model.Migrate(db))

	f := &fixture{db: db}
	f.cardiology = model.Department{Name: "Cardiology"}
	f.general = model.Department{Name: "General"}
	require.NoError(t, db.Create(&f.cardiology).Error)
	require.NoError(t, db.Create(&f.general).Error)

	f.admin = f.user(t, "admin", model.RoleIDAdmin)
	f.doctorUser = f.user(t, "dr.d", model.RoleIDDoctor)
	f.doctor2User = f.user(t, "dr.d2", model.RoleIDDoctor)
	f.patientUser = f.user(t, "pat.p", model.RoleIDPatient)
	f.patient2User = f.user(t, "pat.q", model.RoleIDPatient)

	f.doctor = model.Doctor{UserID: f.doctorUser.ID, DepartmentID: f.cardiology.ID, Specialization: "Cardiology"}
	f.doctor2 = model.Doctor{UserID: f.doctor2User.ID, DepartmentID: f.general.ID, Specialization: "General practice"}
	require.NoError(t, db.Create(&f.doctor).Error)
	require.NoError(t, db.Create(&f.doctor2).Error)

	f.patient = model.Patient{UserID: f.patientUser.ID, Age: 30, Gender: "female"}
	f.patient2 = model.Patient{UserID: f.patient2User.ID, Age: 41, Gender: "male"}
	require.NoError(t, db.Create(&f.patient).Error)
	require.NoError(t, db.Create(&f.patient2).Error)
	return f
}

func (f *fixture) user(t *testing.T, username string, roleID uint32) model.User {
	t.Helper()
	u := model.User{Username: username, Email: username + "@example.com", Password: "x", RoleID: roleID}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) slot(t *testing.T, doctorID uint, date, start, end string) model.Availability {
	t.Helper()
	s := model.Availability{DoctorID: doctorID, Date: date, StartTime: start, EndTime: end}
	require.NoError(t, f.db.Create(&s).Error)
	return s
}

func (f *fixture) reloadSlot(t *testing.T, id uint) model.Availability {
	t.Helper()
	var s model.Availability
	require.NoError(t, f.db.First(&s, id).Error)
	return s
}

func (f *fixture) reloadAppointment(t *testing.T, id uint) model.Appointment {
	t.Helper()
	var a model.Appointment
	require.NoError(t, f.db.First(&a, id).Error)
	return a
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func (f *fixture) bookCardiology(t *testing.T) (*model.Appointment, model.Availability) {
	t.Helper()
	slot := f.slot(t, f.doctor.ID, "2024-06-01", "09:00", "09:30")
	appt, err := Book(context.Background(), f.db, f.patientUser.ID, BookRequest{
		DepartmentID:   f.cardiology.ID,
		DoctorID:       f.doctor.ID,
		AvailabilityID: slot.ID,
	})
	require.NoError(t, err)
	return appt, slot
}
