package intake

import "github.com/JonathanLopez0327/chat-demo/pkg/domain"

// Node names.
const (
	NodeGreeting              = "greeting"
	NodeRegisterUser          = "register_user"
	NodeCollectDescription    = "collect_description"
	NodeClassify              = "classify"
	NodeConfirmClassification = "confirm_classification"
	NodeCollectFields         = "collect_fields"
	NodeConfirmation          = "confirmation"
	NodeProcessConfirmation   = "process_confirmation"
	NodeEdit                  = "edit"
	NodeSave                  = "save"
)

// Terminal names.
const (
	TerminalSaved     = "saved"
	TerminalCancelled = "cancelled"
	TerminalUnhandled = "unhandled"
	TerminalError     = "error"
)

// Routing markers written into ConversationState.CurrentNode.
const (
	markerKnownUser       = "greeting"
	markerNewUser         = "greeting_new"
	markerRegistered      = "registered"
	markerDescribed       = "collect_description"
	markerClassified      = "classify"
	markerClassifyFailed  = "classify_failed"
	markerRetryDesc       = "retry_description"
	markerRetrySelection  = "retry_classify"
	markerSelected        = "confirmed"
	markerFieldCollected  = "collect_fields"
	markerFieldsDone      = "fields_done"
	markerSummarized      = "confirmation"
	markerAffirmed        = "save"
	markerEditRequested   = "edit"
	markerCancelled       = "cancelled"
	markerFieldRecognized = "edit_ok"
	markerFieldUnknown    = "edit_retry"
	markerSaved           = "saved"
	markerRecordInvalid   = "error"
)

func routeGreeting(s domain.ConversationState) string {
	if s.CurrentNode == markerKnownUser {
		return NodeCollectDescription
	}
	return NodeRegisterUser
}

// registerRouter asks for the name again until maxRetries answers in a row
// were unusable.
func registerRouter(maxRetries int) func(domain.ConversationState) string {
	return func(s domain.ConversationState) string {
		switch {
		case s.CurrentNode == markerRegistered:
			return NodeCollectDescription
		case s.RetryAttempts >= maxRetries:
			return TerminalUnhandled
		default:
			return NodeRegisterUser
		}
	}
}

// classifyRouter sends a success to onSuccess and a failure back to the
// description while attempts remain.
func classifyRouter(onSuccess string, maxAttempts int) func(domain.ConversationState) string {
	return func(s domain.ConversationState) string {
		switch {
		case s.CurrentNode == markerClassified:
			return onSuccess
		case s.ClassifyAttempts >= maxAttempts:
			return TerminalUnhandled
		default:
			return NodeCollectDescription
		}
	}
}

func selectionRouter(maxRetries int) func(domain.ConversationState) string {
	return func(s domain.ConversationState) string {
		switch {
		case s.CurrentNode == markerSelected:
			return NodeCollectFields
		case s.CurrentNode == markerRetryDesc:
			return NodeCollectDescription
		case s.RetryAttempts >= maxRetries:
			return TerminalUnhandled
		default:
			return NodeConfirmClassification
		}
	}
}

func routeFields(s domain.ConversationState) string {
	if len(s.MissingFields) > 0 {
		return NodeCollectFields
	}
	return NodeConfirmation
}

func routeDecision(s domain.ConversationState) string {
	switch s.CurrentNode {
	case markerAffirmed:
		return NodeSave
	case markerEditRequested:
		return NodeEdit
	default:
		return TerminalCancelled
	}
}

func editRouter(maxRetries int) func(domain.ConversationState) string {
	return func(s domain.ConversationState) string {
		switch {
		case s.CurrentNode == markerFieldRecognized:
			return NodeCollectFields
		case s.RetryAttempts >= maxRetries:
			return TerminalUnhandled
		default:
			return NodeEdit
		}
	}
}

func routeSave(s domain.ConversationState) string {
	if s.CurrentNode == markerSaved {
		return TerminalSaved
	}
	return TerminalError
}
