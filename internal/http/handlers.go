package http

import (
	"context"
	"net/http"
	"time"

	"totalx/internal/core"
	"totalx/internal/log"
	"totalx/internal/services"
)

// commandFunc runs one ledger command for actor and returns the JSON payload.
type commandFunc func(ctx context.Context, actor core.Identity, p *RequestBodyParser) (any, error)

// command wraps a ledger command with actor extraction, body parsing and
// error mapping. op is the log.Op* name used in logs and reply selection.
func (s *Server) command(op, targetField string, fn commandFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, err := ActorFromRequest(r)
		if err != nil {
			s.writeError(w, r, op, "", err)
			return
		}

		p := NewRequestBodyParser(w, r)
		if err := p.Parse(); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}

		res, err := fn(ctx, actor, p)
		if err != nil {
			target := ""
			if targetField != "" {
				target = p.Get(targetField)
			}
			s.writeError(w, r, op, target, err)
			return
		}
		NewResponse().JSON(res).Write(w)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op, target string, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger command failed",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	}
	ErrorResponse(status, code, services.ErrorMessage(op, target, err)).Write(w)
}

func (s *Server) handleAdd(ctx context.Context, actor core.Identity, p *RequestBodyParser) (any, error) {
	return s.svc.Add(ctx, actor, p.Get("amount"))
}

func (s *Server) handleSubtract(ctx context.Context, actor core.Identity, p *RequestBodyParser) (any, error) {
	return s.svc.Subtract(ctx, actor, p.Get("amount"))
}

func (s *Server) handleTotal(ctx context.Context, actor core.Identity, _ *RequestBodyParser) (any, error) {
	return s.svc.Total(ctx, actor)
}

func (s *Server) handleReport(ctx context.Context, actor core.Identity, _ *RequestBodyParser) (any, error) {
	return s.svc.Report(ctx, actor)
}

func (s *Server) handleUndo(ctx context.Context, actor core.Identity, _ *RequestBodyParser) (any, error) {
	return s.svc.Undo(ctx, actor)
}

func (s *Server) handleReset(ctx context.Context, actor core.Identity, _ *RequestBodyParser) (any, error) {
	return s.svc.Reset(ctx, actor)
}

func (s *Server) handleSetAdmin(ctx context.Context, actor core.Identity, p *RequestBodyParser) (any, error) {
	return s.svc.SetAdmin(ctx, actor, p.Get("target"))
}

func (s *Server) handleAdminList(ctx context.Context, actor core.Identity, _ *RequestBodyParser) (any, error) {
	return s.svc.AdminList(ctx, actor)
}

// handleExport streams the workbook instead of a JSON payload.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, err := ActorFromRequest(r)
	if err != nil {
		s.writeError(w, r, log.OpExport, "", err)
		return
	}
	res, err := s.svc.Export(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, log.OpExport, "", err)
		return
	}
	NewResponse().Attachment(res.FileName, res.ContentType, res.Data).Write(w)
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"message": s.svc.Help()}).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "not_ready", err.Error()).Write(w)
		return
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}
