package errors

import "errors"

// Domain errors
var (
	// Diagram errors
	ErrComponentNotFound  = errors.New("component not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSelfConnection     = errors.New("cannot connect a component to itself")
	ErrDuplicateComponent = errors.New("component already exists")
	ErrUnknownAnchor      = errors.New("unknown connection anchor")
	ErrEmptyProtocol      = errors.New("protocol cannot be empty")
	ErrDanglingConnection = errors.New("connection references a missing component")

	// Threat model errors
	ErrDiagramNotFound      = errors.New("diagram not found")
	ErrDiagramExists        = errors.New("diagram already exists")
	ErrEmptySystemName      = errors.New("system name cannot be empty")
	ErrNoComponents         = errors.New("diagram has no components")
	ErrUnknownMethodology   = errors.New("unknown analysis methodology")
	ErrUnknownFramework     = errors.New("unknown compliance framework")
	ErrUnknownSystemType    = errors.New("unknown system type")
	ErrUnknownComponentType = errors.New("unknown component type")

	// Scan errors
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrHistoryNotFound  = errors.New("history entry not found")
	ErrUnsupportedTool  = errors.New("unsupported tool")
	ErrEmptyTarget      = errors.New("target cannot be empty")
	ErrInvalidInterval  = errors.New("schedule interval must be at least one minute")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrInvalidData           = errors.New("invalid data")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
