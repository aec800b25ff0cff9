package util

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/ariebrainware/hospital-appointment/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SecurityEventType represents different types of security events
type SecurityEventType string

const (
	EventLoginSuccess       SecurityEventType = "LOGIN_SUCCESS"
	EventLoginFailure       SecurityEventType = "LOGIN_FAILURE"
	EventSignupSuccess      SecurityEventType = "SIGNUP_SUCCESS"
	EventLogout             SecurityEventType = "LOGOUT"
	EventAccountLocked      SecurityEventType = "ACCOUNT_LOCKED"
	EventAccountDeleted     SecurityEventType = "ACCOUNT_DELETED"
	EventPasswordUpgraded   SecurityEventType = "PASSWORD_UPGRADED"
	EventUnauthorizedAccess SecurityEventType = "UNAUTHORIZED_ACCESS"
	EventRateLimitExceeded  SecurityEventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity SecurityEventType = "SUSPICIOUS_ACTIVITY"
	EventEndpointCall       SecurityEventType = "ENDPOINT_CALL"

	EventAppointmentBooked      SecurityEventType = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled SecurityEventType = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   SecurityEventType = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   SecurityEventType = "APPOINTMENT_COMPLETED"
	EventAppointmentConflict    SecurityEventType = "APPOINTMENT_CONFLICT"
	EventSlotReleaseMissed      SecurityEventType = "SLOT_RELEASE_MISSED"
)

// SecurityEvent represents a security event to be logged
type SecurityEvent struct {
	EventType SecurityEventType
	UserID    string
	Account   string
	IP        string
	UserAgent string
	RequestID string
	Message   string
	Details   map[string]interface{}
}

var (
	securityLogger = log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.Lmsgprefix)
	securityDB     *gorm.DB
	securityDBMu   sync.RWMutex
)

// SetSecurityLoggerDB sets the gorm DB security events are persisted to.
// Pass nil to keep events on stdout only.
func SetSecurityLoggerDB(db *gorm.DB) {
	securityDBMu.Lock()
	securityDB = db
	securityDBMu.Unlock()
}

// sanitizeLogValue removes newlines and other characters that could break log parsing
func sanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	if len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

// LogSecurityEvent writes the event to the security log and, when a DB is
// configured, persists it. Persistence failures never reach the caller.
func LogSecurityEvent(event SecurityEvent) {
	msg := fmt.Sprintf("Event=%s UserID=%s Account=%s IP=%s UserAgent=%s Message=%s",
		sanitizeLogValue(string(event.EventType)),
		sanitizeLogValue(event.UserID),
		sanitizeLogValue(event.Account),
		sanitizeLogValue(event.IP),
		sanitizeLogValue(event.UserAgent),
		sanitizeLogValue(event.Message),
	)
	if event.RequestID != "" {
		msg = fmt.Sprintf("%s RequestID=%s", msg, sanitizeLogValue(event.RequestID))
	}
	if len(event.Details) > 0 {
		// details go to the DB only
		msg = fmt.Sprintf("%s DetailsCount=%d", msg, len(event.Details))
	}
	securityLogger.Println(msg)

	securityDBMu.RLock()
	db := securityDB
	securityDBMu.RUnlock()
	if db == nil {
		return
	}

	var details datatypes.JSON
	if event.Details != nil {
		if b, err := json.Marshal(event.Details); err == nil {
			details = datatypes.JSON(b)
		}
	}
	entry := model.SecurityLog{
		EventType: string(event.EventType),
		UserID:    sanitizeLogValue(event.UserID),
		Account:   sanitizeLogValue(event.Account),
		IP:        sanitizeLogValue(event.IP),
		Location:  sanitizeLogValue(GetIPLocation(event.IP).Label()),
		UserAgent: sanitizeLogValue(event.UserAgent),
		RequestID: sanitizeLogValue(event.RequestID),
		Message:   sanitizeLogValue(event.Message),
		Details:   details,
	}
	if err := db.Create(&entry).Error; err != nil {
		securityLogger.Printf("Failed to persist security event: %v", err)
	}
}

func idString(id uint) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("%d", id)
}

// LoginParams describes an authentication event.
type LoginParams struct {
	UserID    uint
	Account   string
	IP        string
	UserAgent string
	Reason    string
}

// LogLoginSuccess logs a successful login event
func LogLoginSuccess(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLoginSuccess,
		UserID:    idString(p.UserID),
		Account:   p.Account,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   "User logged in successfully",
	})
}

// LogLoginFailure logs a failed login attempt
func LogLoginFailure(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLoginFailure,
		UserID:    idString(p.UserID),
		Account:   p.Account,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   fmt.Sprintf("Login failed: %s", p.Reason),
	})
}

// LogSignup logs a self-registration.
func LogSignup(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventSignupSuccess,
		UserID:    idString(p.UserID),
		Account:   p.Account,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   fmt.Sprintf("User registered as %s", p.Reason),
	})
}

// LogLogout logs a logout event
func LogLogout(p LoginParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLogout,
		UserID:    idString(p.UserID),
		Account:   p.Account,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		Message:   "User logged out",
	})
}

// AccountLockParams describes a lockout.
type AccountLockParams struct {
	UserID  uint
	Account string
	IP      string
	Reason  string
}

// LogAccountLocked logs when an account is locked
func LogAccountLocked(p AccountLockParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventAccountLocked,
		UserID:    idString(p.UserID),
		Account:   p.Account,
		IP:        p.IP,
		Message:   fmt.Sprintf("Account locked: %s", p.Reason),
	})
}

// UnauthorizedAccessParams describes a rejected request.
type UnauthorizedAccessParams struct {
	UserID    string
	Account   string
	IP        string
	RequestID string
	Resource  string
	Reason    string
}

// LogUnauthorizedAccess logs unauthorized access attempts
func LogUnauthorizedAccess(p UnauthorizedAccessParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventUnauthorizedAccess,
		UserID:    p.UserID,
		Account:   p.Account,
		IP:        p.IP,
		RequestID: p.RequestID,
		Message:   fmt.Sprintf("Unauthorized access to %s: %s", p.Resource, p.Reason),
	})
}

// RateLimitParams describes a throttled request.
type RateLimitParams struct {
	Account  string
	IP       string
	Endpoint string
}

// LogRateLimitExceeded logs when rate limit is exceeded
func LogRateLimitExceeded(p RateLimitParams) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventRateLimitExceeded,
		Account:   p.Account,
		IP:        p.IP,
		Message:   fmt.Sprintf("Rate limit exceeded for endpoint: %s", p.Endpoint),
	})
}

// AppointmentEventParams describes a ledger transition.
type AppointmentEventParams struct {
	Event         SecurityEventType
	ActorID       uint
	AppointmentID uint
	SlotID        uint
	RequestID     string
	Message       string
}

// LogAppointmentEvent records a workflow transition in the audit trail.
func LogAppointmentEvent(p AppointmentEventParams) {
	details := map[string]interface{}{}
	if p.AppointmentID != 0 {
		details["appointment_id"] = p.AppointmentID
	}
	if p.SlotID != 0 {
		details["slot_id"] = p.SlotID
	}
	LogSecurityEvent(SecurityEvent{
		EventType: p.Event,
		UserID:    idString(p.ActorID),
		RequestID: p.RequestID,
		Message:   p.Message,
		Details:   details,
	})
}

// SetSecurityLoggerForTest sets a custom logger for testing purposes
func SetSecurityLoggerForTest(logger *log.Logger) {
	securityLogger = logger
}

// GetSecurityLoggerForTest returns the current security logger for testing purposes
func GetSecurityLoggerForTest() *log.Logger {
	return securityLogger
}
