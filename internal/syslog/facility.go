package syslog

import "fmt"

// Facility classifies the subsystem a message originates from.
type Facility int

// Facility codes as assigned by RFC 5424 section 6.2.1.
const (
	FacilityKern Facility = iota
	FacilityUser
	FacilityMail
	FacilityDaemon
	FacilityAuth
	FacilitySyslog
	FacilityLpr
	FacilityNews
	FacilityUUCP
	FacilityCron
	FacilityAuthPriv
	FacilityFTP
	FacilityNTP
	FacilityAudit
	FacilityAlert
	FacilityClock
	FacilityLocal0
	FacilityLocal1
	FacilityLocal2
	FacilityLocal3
	FacilityLocal4
	FacilityLocal5
	FacilityLocal6
	FacilityLocal7
)

// Severity classifies the urgency of a message.
type Severity int

// Severity codes as assigned by RFC 5424 section 6.2.1.
const (
	SeverityEmergency Severity = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInformational
	SeverityDebug
)

var facilityNames = []string{
	"kern",     // 0
	"user",     // 1
	"mail",     // 2
	"daemon",   // 3
	"auth",     // 4
	"syslog",   // 5
	"lpr",      // 6
	"news",     // 7
	"uucp",     // 8
	"cron",     // 9
	"authpriv", // 10
	"ftp",      // 11
	"ntp",      // 12
	"audit",    // 13
	"alert",    // 14
	"clock",    // 15
	"local0",   // 16
	"local1",   // 17
	"local2",   // 18
	"local3",   // 19
	"local4",   // 20
	"local5",   // 21
	"local6",   // 22
	"local7",   // 23
}

var severityNames = []string{
	"emerg",  // 0
	"alert",  // 1
	"crit",   // 2
	"err",    // 3
	"warn",   // 4
	"notice", // 5
	"info",   // 6
	"debug",  // 7
}

// String returns the conventional short name of the facility.
func (f Facility) String() string {
	if f >= 0 && int(f) < len(facilityNames) {
		return facilityNames[f]
	}
	return fmt.Sprintf("facility(%d)", int(f))
}

// String returns the conventional short name of the severity.
func (s Severity) String() string {
	if s >= 0 && int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", int(s))
}
