package model

import "errors"

// Errors shared by the layered-model packages. Callers match them with
// errors.Is; the wrapping error carries the index, line, or sizes involved.
var (
	ErrMalformedInput    = errors.New("model: malformed input")
	ErrInvalidLayerIndex = errors.New("model: invalid layer index")
	ErrModelShape        = errors.New("model: unexpected model shape")
	ErrAlreadyFlattened  = errors.New("model: model has already been flattened")
	ErrInsufficientData  = errors.New("model: reference profile too shallow")
	ErrUnsupportedFormat = errors.New("model: unsupported interchange format")
	ErrInvalidParameter  = errors.New("model: invalid parameter")
)
