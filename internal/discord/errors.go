package discord

import (
	"errors"
	"net"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Class buckets API failures by how callers must react.
type Class uint8

const (
	// ClassTransient covers rate limits, timeouts and server errors.
	// Callers retry with backoff.
	ClassTransient Class = iota
	// ClassPermission covers forbidden and hierarchy failures. Callers
	// skip the resource and record it in their report.
	ClassPermission
	// ClassNotFound means the resource vanished mid-operation. Callers
	// treat the operation as already satisfied.
	ClassNotFound
	// ClassUnknown is everything else.
	ClassUnknown
)

// Discord JSON error codes the engine cares about.
const (
	codeUnknownChannel     = 10003
	codeUnknownGuild       = 10004
	codeUnknownMember      = 10007
	codeUnknownRole        = 10011
	codeUnknownUser        = 10013
	codeMaxGuildRoles      = 30005
	codeMaxGuildChannels   = 30013
	codeMissingAccess      = 50001
	codeMissingPermissions = 50013
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermission:
		return "permission"
	case ClassNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Classify maps an API error to its handling class.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil {
			switch rest.Message.Code {
			case codeUnknownChannel, codeUnknownGuild, codeUnknownMember, codeUnknownRole, codeUnknownUser:
				return ClassNotFound
			case codeMissingAccess, codeMissingPermissions:
				return ClassPermission
			}
		}
		if rest.Response != nil {
			switch {
			case rest.Response.StatusCode == http.StatusTooManyRequests:
				return ClassTransient
			case rest.Response.StatusCode >= 500:
				return ClassTransient
			case rest.Response.StatusCode == http.StatusForbidden:
				return ClassPermission
			case rest.Response.StatusCode == http.StatusNotFound:
				return ClassNotFound
			}
		}
		return ClassUnknown
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	return ClassUnknown
}

// IsCapacityLimit reports whether the error is a hard platform cap
// (max roles / max channels). Bulk creators end the phase gracefully
// when they hit one.
func IsCapacityLimit(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		switch rest.Message.Code {
		case codeMaxGuildRoles, codeMaxGuildChannels:
			return true
		}
	}
	return false
}
