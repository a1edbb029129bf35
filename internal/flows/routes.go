package flows

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/meganet/portal/internal/authz"
	"github.com/meganet/portal/internal/logging"
)

// WarningHeader carries advisory authoring warnings such as cycles.
const WarningHeader = "X-Flow-Warning"

// RegisterRoutes mounts the flow endpoints on the given router.
func RegisterRoutes(r chi.Router, svc *Service, engine *Engine, log *logging.Logger) {
	if log == nil {
		log = logging.NewNop()
	}
	r.Route("/flow", func(r chi.Router) {
		r.Post("/", createStepHandler(svc, log))
		r.Get("/start/{id}", startHandler(engine, log))
		r.Get("/next/{id}/{choice}", nextHandler(engine, log))
		r.Get("/{id}", listStepsHandler(svc, log))
		r.Get("/{id}/report", reportHandler(svc, log))
		r.Put("/{id}", updateStepHandler(svc, log))
		r.Delete("/{id}", deleteStepHandler(svc, log))
	})
}

func listStepsHandler(svc *Service, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID, err := PathID(chi.URLParam(r, "id"), "question_id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		steps, err := svc.List(r.Context(), questionID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, steps)
	}
}

func reportHandler(svc *Service, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID, err := PathID(chi.URLParam(r, "id"), "question_id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		rep, err := svc.Report(r.Context(), questionID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func createStepHandler(svc *Service, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		caller := authz.ResolveCaller(r.Context(), body)
		in, err := parseStepInput(body)
		if err != nil && !svc.policy.IsAdmin(caller.RoleID) {
			// Authorization is decided before input is inspected.
			writeError(w, log, svc.requireAdmin(caller))
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}

		step, warning, err := svc.Create(r.Context(), caller, in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if warning != "" {
			w.Header().Set(WarningHeader, warning)
		}
		writeJSON(w, http.StatusCreated, step)
	}
}

func updateStepHandler(svc *Service, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stepID, err := PathID(chi.URLParam(r, "id"), "step_id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		body, err := ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		caller := authz.ResolveCaller(r.Context(), body)
		in, err := parseStepInput(body)
		if err != nil && !svc.policy.IsAdmin(caller.RoleID) {
			writeError(w, log, svc.requireAdmin(caller))
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}

		step, warning, err := svc.Update(r.Context(), caller, stepID, in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if warning != "" {
			w.Header().Set(WarningHeader, warning)
		}
		writeJSON(w, http.StatusOK, step)
	}
}

func deleteStepHandler(svc *Service, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stepID, err := PathID(chi.URLParam(r, "id"), "step_id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		body, err := ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		res, err := svc.Delete(r.Context(), authz.ResolveCaller(r.Context(), body), stepID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func startHandler(engine *Engine, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID, err := PathID(chi.URLParam(r, "id"), "question_id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		step, err := engine.Start(r.Context(), questionID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, step)
	}
}

func nextHandler(engine *Engine, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stepID, err := PathID(chi.URLParam(r, "id"), "step_id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		res, err := engine.Next(r.Context(), stepID, chi.URLParam(r, "choice"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// parseStepInput reads the author-supplied step fields from a JSON body.
func parseStepInput(body []byte) (StepInput, error) {
	var in StepInput
	qid, err := OptionalID(body, "question_id")
	if err != nil {
		return in, err
	}
	if qid != nil {
		in.QuestionID = *qid
	}
	if in.YesNextStep, err = OptionalID(body, "yes_next_step"); err != nil {
		return in, err
	}
	if in.NoNextStep, err = OptionalID(body, "no_next_step"); err != nil {
		return in, err
	}
	fields := gjson.GetManyBytes(body, "step_text", "is_final")
	in.StepText = strings.TrimSpace(fields[0].String())
	in.IsFinal = fields[1].Bool()
	return in, nil
}

func writeError(w http.ResponseWriter, log *logging.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("flow request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": ErrorMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
