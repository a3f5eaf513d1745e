package services

import (
	"errors"

	"totalx/internal/core"
	"totalx/internal/log"
	"totalx/internal/reply"
)

// ErrorMessage renders the chat reply for a failed command. op is one of the
// log.Op* command names; rawTarget is only used by setadmin.
func ErrorMessage(op, rawTarget string, err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		if op == log.OpSubtract {
			return reply.SubtractUsage
		}
		return reply.AddUsage
	case errors.Is(err, core.ErrInvalidIdentity):
		if op == log.OpSetAdmin {
			return reply.SetAdminUsage
		}
		return reply.InvalidIdentity
	case errors.Is(err, core.ErrProtectedIdentity):
		target, perr := core.ParseIdentity(rawTarget)
		if perr != nil {
			target = core.Identity(rawTarget)
		}
		return reply.Protected(target)
	case errors.Is(err, core.ErrUnauthorized):
		if op == log.OpAdminList {
			return reply.AdminListDenied
		}
		return reply.SetAdminDenied
	default:
		return reply.InternalError
	}
}
