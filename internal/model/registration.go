package model

// Registration and recurrence types of an applicable network.
const (
	RegistrationNone                = "NONE"
	RegistrationOptional            = "OPTIONAL"
	RegistrationForced              = "FORCED"
	RegistrationOptionalPreselected = "OPTIONAL_PRESELECTED"
	RegistrationForcedDisplayed     = "FORCED_DISPLAYED"
)

// IsRegistrationType reports whether value is a known registration type.
func IsRegistrationType(value string) bool {
	switch value {
	case RegistrationNone, RegistrationOptional, RegistrationForced,
		RegistrationOptionalPreselected, RegistrationForcedDisplayed:
		return true
	default:
		return false
	}
}

// RegistrationCheckbox describes how a registration type is shown to the user.
type RegistrationCheckbox struct {
	Visible  bool
	Editable bool
	Checked  bool
}

// CheckboxFor maps a registration type to the checkbox it produces.
// ok is false when the type produces no value at all.
func CheckboxFor(registration string) (RegistrationCheckbox, bool) {
	switch registration {
	case RegistrationOptional:
		return RegistrationCheckbox{Visible: true, Editable: true}, true
	case RegistrationOptionalPreselected:
		return RegistrationCheckbox{Visible: true, Editable: true, Checked: true}, true
	case RegistrationForced:
		return RegistrationCheckbox{Checked: true}, true
	case RegistrationForcedDisplayed:
		return RegistrationCheckbox{Visible: true, Checked: true}, true
	default:
		return RegistrationCheckbox{}, false
	}
}
