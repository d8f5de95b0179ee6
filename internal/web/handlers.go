package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/promo"
	"github.com/nhle/showbot/internal/store"
)

const recentIntakes = 20

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "start.html", startPage{
		Authorized: s.Session.Authorized(),
		Configured: s.Config.Cohuman.HasConsumer(),
	})
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "showtime.html", nil)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderDashboard(w, r, "", "")
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, message, messageType string) {
	shows, err := s.Promoter.Dashboard(r.Context())
	if s.needsAuthorization(err) {
		http.Redirect(w, r, "/authorize", http.StatusFound)
		return
	}
	if err != nil {
		s.Logger.Error("loading dashboard", "err", err)
		http.Error(w, "could not load shows from Cohuman", http.StatusBadGateway)
		return
	}

	s.render(w, http.StatusOK, "dashboard.html", dashboardPage{
		Shows:       shows,
		Message:     message,
		MessageType: messageType,
	})
}

func (s *Server) needsAuthorization(err error) bool {
	return errors.Is(err, cohuman.ErrNotAuthorized) || cohuman.IsUnauthorized(err)
}

func (s *Server) handleFan(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	if strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	if _, err := s.Promoter.AddFan(r.Context(), email); err != nil {
		s.Logger.Warn("adding fan", "email", email, "err", err)
		if s.needsAuthorization(err) {
			writeError(w, http.StatusServiceUnavailable, "not_authorized", "showbot is not connected to Cohuman")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleIn is the inbound webhook. It takes "plain", "from" and "subject"
// form fields and answers 404 when no task holds the code.
func (s *Server) handleIn(w http.ResponseWriter, r *http.Request) {
	plain := r.FormValue("plain")
	if strings.TrimSpace(plain) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "plain is required")
		return
	}

	res, err := s.Intaker.HandlePlain(r.Context(), r.FormValue("from"), r.FormValue("subject"), plain)
	if err != nil {
		s.Logger.Error("handling inbound message", "err", err)
		writeError(w, http.StatusBadGateway, "redeem_failed", "could not redeem promo code")
		return
	}

	switch res.Record.Status {
	case model.IntakeRedeemed:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	default:
		writeError(w, http.StatusNotFound, "not_found", "no promo task matches this message")
	}
}

func (s *Server) handlePromo(w http.ResponseWriter, r *http.Request) {
	showID, ok := parseShowID(w, r)
	if !ok {
		return
	}

	issued, err := s.Promoter.IssuePromos(r.Context(), showID, r.PathValue("prefix"))
	if err != nil {
		s.writePromoError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, issuedJSON(issued))
}

func (s *Server) handlePromoForm(w http.ResponseWriter, r *http.Request) {
	showID, ok := parseShowID(w, r)
	if !ok {
		return
	}

	prefix := strings.TrimSpace(r.FormValue("prefix"))
	issued, err := s.Promoter.IssuePromos(r.Context(), showID, prefix)
	if err != nil {
		s.Logger.Warn("issuing promos", "show", showID, "err", err)
		if s.needsAuthorization(err) {
			http.Redirect(w, r, "/authorize", http.StatusFound)
			return
		}
		s.renderDashboard(w, r, fmt.Sprintf("Could not issue promo codes: %v", err), "error")
		return
	}

	s.renderDashboard(w, r, fmt.Sprintf("Issued %d promo codes with prefix %s.", len(issued), prefix), "success")
}

func (s *Server) writePromoError(w http.ResponseWriter, err error) {
	s.Logger.Warn("issuing promos", "err", err)
	switch {
	case errors.Is(err, promo.ErrInvalidPrefix):
		writeError(w, http.StatusBadRequest, "invalid_prefix", err.Error())
	case s.needsAuthorization(err):
		writeError(w, http.StatusServiceUnavailable, "not_authorized", "showbot is not connected to Cohuman")
	default:
		writeError(w, http.StatusBadGateway, "cohuman_error", err.Error())
	}
}

func parseShowID(w http.ResponseWriter, r *http.Request) (cohuman.ID, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "show id must be a positive number")
		return 0, false
	}
	return cohuman.ID(id), true
}

type issuedEntry struct {
	MemberID  cohuman.ID `json:"member_id"`
	Email     string     `json:"email"`
	PromoCode string     `json:"promo_code"`
	TaskID    cohuman.ID `json:"task_id"`
}

func issuedJSON(issued []promo.Issued) []issuedEntry {
	out := make([]issuedEntry, 0, len(issued))
	for _, is := range issued {
		out = append(out, issuedEntry{
			MemberID:  is.Member.ID,
			Email:     is.Member.Email,
			PromoCode: is.Code,
			TaskID:    is.TaskID,
		})
	}
	return out
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.Scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "no_poller", "mailbox polling is disabled")
		return
	}
	s.Scanner.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan queued"})
}

type statusResponse struct {
	Authorized bool                 `json:"authorized"`
	Poller     *pollerStatus        `json:"poller,omitempty"`
	Recent     []model.IntakeRecord `json:"recent"`
}

type pollerStatus struct {
	State     string    `json:"state"`
	LastSync  time.Time `json:"last_sync"`
	Summary   string    `json:"summary"`
	Received  int       `json:"received"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Error     string    `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	recent, err := s.Store.GetIntakes(r.Context(), store.IntakeFilter{Limit: recentIntakes})
	if err != nil {
		s.Logger.Error("listing intakes", "err", err)
		writeError(w, http.StatusInternalServerError, "store_error", "could not list recent messages")
		return
	}
	if recent == nil {
		recent = []model.IntakeRecord{}
	}

	resp := statusResponse{
		Authorized: s.Session.Authorized(),
		Recent:     recent,
	}

	if s.Scanner != nil {
		st := s.Scanner.Status()
		ps := &pollerStatus{
			State:     st.State.String(),
			LastSync:  st.LastSync,
			Summary:   st.Last.String(),
			Received:  st.Last.Received,
			Processed: st.Last.Processed,
			Skipped:   st.Last.Skipped,
			Errors:    st.Last.Errors,
		}
		if st.Error != nil {
			ps.Error = st.Error.Error()
		}
		resp.Poller = ps
	}

	writeJSON(w, http.StatusOK, resp)
}
