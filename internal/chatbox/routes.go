package chatbox

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/meganet/portal/internal/authz"
	"github.com/meganet/portal/internal/flows"
	"github.com/meganet/portal/internal/logging"
)

// RegisterRoutes mounts the topic and question endpoints.
func RegisterRoutes(r chi.Router, reg *Registry, log *logging.Logger) {
	if log == nil {
		log = logging.NewNop()
	}
	r.Get("/topics", listTopicsHandler(reg, log))
	r.Post("/topics", createTopicHandler(reg, log))
	r.Delete("/topics/{id}", deleteTopicHandler(reg, log))

	r.Get("/questions", listQuestionsHandler(reg, log))
	r.Post("/questions", createQuestionHandler(reg, log))
	r.Put("/questions/{id}", updateQuestionHandler(reg, log))
	r.Delete("/questions/{id}", deleteQuestionHandler(reg, log))
}

func listTopicsHandler(reg *Registry, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, err := reg.ListTopics(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, topics)
	}
}

func createTopicHandler(reg *Registry, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := flows.ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		caller := authz.ResolveCaller(r.Context(), body)
		t, err := reg.CreateTopic(r.Context(), caller, gjson.GetBytes(body, "topic_name").String())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func deleteTopicHandler(reg *Registry, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID, err := flows.PathID(chi.URLParam(r, "id"), "topic id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		body, err := flows.ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if err := reg.DeleteTopic(r.Context(), authz.ResolveCaller(r.Context(), body), topicID); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "topic deleted"})
	}
}

func listQuestionsHandler(reg *Registry, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("topic_id")
		if raw == "" {
			writeError(w, log, fmt.Errorf("%w: missing topic_id", flows.ErrValidation))
			return
		}
		topicID, err := flows.PathID(raw, "topic_id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		questions, err := reg.ListQuestions(r.Context(), topicID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, questions)
	}
}

func createQuestionHandler(reg *Registry, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := flows.ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		caller := authz.ResolveCaller(r.Context(), body)
		topicID, err := flows.OptionalID(body, "topic_id")
		if err != nil && !reg.policy.IsAdmin(caller.RoleID) {
			writeError(w, log, reg.requireAdmin(caller))
			return
		}
		if err != nil {
			writeError(w, log, err)
			return
		}
		in := QuestionInput{
			Question: gjson.GetBytes(body, "question").String(),
			Answer:   gjson.GetBytes(body, "answer").String(),
		}
		if topicID != nil {
			in.TopicID = *topicID
		}
		q, err := reg.CreateQuestion(r.Context(), caller, in)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func updateQuestionHandler(reg *Registry, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID, err := flows.PathID(chi.URLParam(r, "id"), "question id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		body, err := flows.ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		fields := gjson.GetManyBytes(body, "question", "answer")
		q, err := reg.UpdateQuestion(r.Context(), authz.ResolveCaller(r.Context(), body), questionID,
			fields[0].String(), fields[1].String())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func deleteQuestionHandler(reg *Registry, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID, err := flows.PathID(chi.URLParam(r, "id"), "question id")
		if err != nil {
			writeError(w, log, err)
			return
		}
		body, err := flows.ReadBody(w, r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if err := reg.DeleteQuestion(r.Context(), authz.ResolveCaller(r.Context(), body), questionID); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "question deleted"})
	}
}

func writeError(w http.ResponseWriter, log *logging.Logger, err error) {
	status := flows.StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("chatbox request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": flows.ErrorMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
