package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// UserMessage returns a user-friendly error message
func UserMessage(err error) string {
	var hErr *HreqError
	if stderrors.As(err, &hErr) {
		return formatUserError(hErr)
	}
	return err.Error()
}

// formatUserError creates user-friendly error messages based on error type
func formatUserError(hErr *HreqError) string {
	switch hErr.Type {
	case ErrorTypeValidation:
		return formatValidationError(hErr)
	case ErrorTypeCapability:
		return formatCapabilityError(hErr)
	case ErrorTypeChannel, ErrorTypeTransport:
		return formatNetworkError(hErr)
	case ErrorTypeConfig:
		return formatConfigError(hErr)
	case ErrorTypeOpenAPI:
		if hErr.Cause != nil {
			return fmt.Sprintf("%s: %s", hErr.Message, hErr.Cause.Error())
		}
		return hErr.Message
	default:
		return hErr.Message
	}
}

func formatValidationError(hErr *HreqError) string {
	msg := hErr.Message
	if field, ok := hErr.Context["field"]; ok {
		msg = fmt.Sprintf("Invalid %s: %s", field, msg)
	}
	return msg
}

func formatCapabilityError(hErr *HreqError) string {
	if backend, ok := hErr.Context["backend"]; ok {
		return fmt.Sprintf("%s (%s backend)", hErr.Message, backend)
	}
	return hErr.Message
}

func formatNetworkError(hErr *HreqError) string {
	msg := hErr.Message
	if hErr.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, hErr.Cause.Error())
	}
	if url, ok := hErr.Context["url"]; ok {
		msg = fmt.Sprintf("Network error accessing %s: %s", url, msg)
	}
	if IsTimeout(hErr) {
		msg += " (timed out)"
	}
	return msg
}

func formatConfigError(hErr *HreqError) string {
	msg := hErr.Message

	if configType, ok := hErr.Context["config_type"]; ok {
		msg = fmt.Sprintf("Configuration error (%s): %s", configType, msg)
	}

	return msg
}

// PresentError displays an error to the user through centralized zerolog system
func PresentError(err error) {
	if err == nil {
		return
	}

	var hErr *HreqError
	if stderrors.As(err, &hErr) {
		event := log.Fatal().Str("type", string(hErr.Type))

		for key, value := range hErr.Context {
			event = event.Interface(key, value)
		}
		if hErr.Cause != nil {
			event = event.AnErr("cause", hErr.Cause)
		}

		event.Msg(formatUserError(hErr))
	} else {
		log.Fatal().Err(err).Msg("")
	}
}

// DebugInfo returns detailed error information for debugging
func DebugInfo(err error) map[string]interface{} {
	info := map[string]interface{}{
		"error":   err.Error(),
		"type":    "unknown",
		"context": map[string]interface{}{},
	}

	var hErr *HreqError
	if stderrors.As(err, &hErr) {
		info["type"] = string(hErr.Type)
		info["message"] = hErr.Message
		info["context"] = hErr.Context

		if hErr.Cause != nil {
			info["cause"] = hErr.Cause.Error()
		}
	}

	return info
}
