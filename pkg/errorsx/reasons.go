package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonRecordingStart ReasonCode = "recording_start"
	ReasonRecordingStop  ReasonCode = "recording_stop"

	ReasonSubmissionSend   ReasonCode = "submission_send"
	ReasonSubmissionStatus ReasonCode = "submission_status"
	ReasonSubmissionDecode ReasonCode = "submission_decode"

	ReasonInvalidTransition ReasonCode = "invalid_transition"
	ReasonConfig            ReasonCode = "config"

	ReasonTransportListen ReasonCode = "transport_listen"
	ReasonTransportSend   ReasonCode = "transport_send"
)
