package endpoint

import (
	"github.com/ariebrainware/hospital-appointment/middleware"
	"github.com/ariebrainware/hospital-appointment/model"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every API route on r. The caller installs the
// request-wide middleware (request id, CORS, DB injection, call logging).
func RegisterRoutes(r gin.IRouter) {
	limited := middleware.RateLimiter(middleware.RateLimitConfig{})
	r.POST("/register", limited, Register)
	r.POST("/login", limited, Login)
	r.GET("/token/validate", ValidateToken)

	r.GET("/departments", ListDepartments)
	r.GET("/departments/:id", GetDepartment)
	r.GET("/departments/:id/doctors", ListDepartmentDoctors)
	r.GET("/doctors", ListDoctors)
	r.GET("/doctors/:id/availability", ListFreeSlots)

	auth := r.Group("/")
	auth.Use(middleware.ValidateLoginToken())
	{
		auth.DELETE("/logout", Logout)
		auth.POST("/verify-password", VerifyPassword)
		auth.PATCH("/user", UpdateUser)

		admin := auth.Group("/admin")
		admin.Use(middleware.RequireRole(model.RoleIDAdmin))
		{
			admin.GET("/users", ListUsers)
			admin.POST("/departments", CreateDepartment)
			admin.PATCH("/departments/:id", UpdateDepartment)
			admin.POST("/doctors", CreateDoctor)
			admin.PATCH("/doctors/:id", UpdateDoctor)
			admin.DELETE("/doctors/:id", DeleteDoctor)
			admin.GET("/doctors/:id/appointments", DoctorAppointmentsForAdmin)
			admin.GET("/patients", ListPatients)
			admin.PATCH("/patients/:id", UpdatePatient)
			admin.DELETE("/patients/:id", DeletePatient)
			admin.GET("/appointments", ListAllAppointments)
			admin.POST("/appointments/:id/cancel", AdminCancelAppointment)
			admin.POST("/appointments/:id/reschedule", AdminRescheduleAppointment)
			admin.DELETE("/appointments/:id", AdminDeleteAppointment)
		}

		doctor := auth.Group("/doctor")
		doctor.Use(middleware.RequireRole(model.RoleIDDoctor))
		{
			doctor.POST("/availability", CreateAvailability)
			doctor.GET("/availability", ListOwnAvailability)
			doctor.DELETE("/availability/:id", DeleteAvailability)
			doctor.GET("/appointments", ListDoctorAppointments)
			doctor.GET("/appointments/:id", GetDoctorAppointment)
			doctor.POST("/appointments/:id/complete", CompleteAppointment)
			doctor.GET("/patients/:id/history", ListPatientHistory)
		}

		patient := auth.Group("/patient")
		patient.Use(middleware.RequireRole(model.RoleIDPatient))
		{
			patient.GET("/profile", GetPatientProfile)
			patient.PATCH("/profile", UpdatePatientProfile)
			patient.GET("/appointments", ListPatientAppointments)
			patient.POST("/appointments", BookAppointment)
			patient.POST("/appointments/:id/reschedule", RescheduleAppointment)
			patient.POST("/appointments/:id/cancel", CancelAppointment)
			patient.GET("/history", ListOwnHistory)
		}

		api := auth.Group("/api")
		api.Use(middleware.RequireRole(model.RoleIDAdmin, model.RoleIDDoctor, model.RoleIDPatient))
		{
			api.GET("/appointments", APIListAppointments)
			api.POST("/appointments", APICreateAppointment)
			api.PUT("/appointments/:id", APIUpdateAppointment)
			api.DELETE("/appointments/:id", middleware.RequireRole(model.RoleIDAdmin), APIDeleteAppointment)
		}
	}
}
