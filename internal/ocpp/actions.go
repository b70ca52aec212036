package ocpp

// Supported protocol versions.
const (
	V16  = "1.6"
	V20  = "2.0"
	V201 = "2.0.1"
)

// v16Actions is the OCPP 1.6 action catalog (edition 2 + security
// whitepaper additions).
var v16Actions = map[string]struct{}{
	"Authorize":                        {},
	"BootNotification":                 {},
	"CancelReservation":                {},
	"CertificateSigned":                {},
	"ChangeAvailability":               {},
	"ChangeConfiguration":              {},
	"ClearCache":                       {},
	"ClearChargingProfile":             {},
	"DataTransfer":                     {},
	"DeleteCertificate":                {},
	"DiagnosticsStatusNotification":    {},
	"ExtendedTriggerMessage":           {},
	"FirmwareStatusNotification":       {},
	"GetCompositeSchedule":             {},
	"GetConfiguration":                 {},
	"GetDiagnostics":                   {},
	"GetInstalledCertificateIds":       {},
	"GetLocalListVersion":              {},
	"GetLog":                           {},
	"Heartbeat":                        {},
	"InstallCertificate":               {},
	"LogStatusNotification":            {},
	"MeterValues":                      {},
	"RemoteStartTransaction":           {},
	"RemoteStopTransaction":            {},
	"ReserveNow":                       {},
	"Reset":                            {},
	"SecurityEventNotification":        {},
	"SendLocalList":                    {},
	"SetChargingProfile":               {},
	"SignCertificate":                  {},
	"SignedFirmwareStatusNotification": {},
	"SignedUpdateFirmware":             {},
	"StartTransaction":                 {},
	"StatusNotification":               {},
	"StopTransaction":                  {},
	"TriggerMessage":                   {},
	"UnlockConnector":                  {},
	"UpdateFirmware":                   {},
}

// v201Actions is the OCPP 2.0.1 action catalog, as far as this server
// tracks it. Kept separate because the two generations diverge.
var v201Actions = map[string]struct{}{
	"Authorize":                  {},
	"BootNotification":           {},
	"CancelReservation":          {},
	"ChangeAvailability":         {},
	"ClearCache":                 {},
	"ClearChargingProfile":       {},
	"DataTransfer":               {},
	"FirmwareStatusNotification": {},
	"GetCompositeSchedule":       {},
	"GetVariables":               {},
	"Heartbeat":                  {},
	"MeterValues":                {},
	"NotifyEvent":                {},
	"NotifyReport":               {},
	"RequestStartTransaction":    {},
	"RequestStopTransaction":     {},
	"ReserveNow":                 {},
	"Reset":                      {},
	"SecurityEventNotification":  {},
	"SetChargingProfile":         {},
	"SetVariables":               {},
	"StatusNotification":         {},
	"TransactionEvent":           {},
	"TriggerMessage":             {},
	"UnlockConnector":            {},
}

// KnownAction reports whether the protocol version defines the action at
// all. Unknown versions know no actions.
func KnownAction(version, action string) bool {
	switch version {
	case V16:
		_, ok := v16Actions[action]
		return ok
	case V20, V201:
		_, ok := v201Actions[action]
		return ok
	default:
		return false
	}
}
