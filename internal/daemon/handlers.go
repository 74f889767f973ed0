package daemon

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	info := s.agent.GetNodeInfo()
	writeJSON(w, http.StatusOK, NodeResponse{NodeID: info.NodeID, Addrs: info.Addrs})
}

func (s *Server) handleCreateBlob(w http.ResponseWriter, r *http.Request) {
	var req CreateBlobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errMissingField("path"))
		return
	}

	ticket, err := s.agent.CreateTicket(req.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateBlobResponse{Ticket: ticket})
}

func (s *Server) handleFetchBlob(w http.ResponseWriter, r *http.Request) {
	var req FetchBlobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Ticket == "" || req.Destination == "" {
		writeError(w, http.StatusBadRequest, errMissingField("ticket, destination"))
		return
	}

	if err := s.agent.GetBlob(r.Context(), req.Ticket, req.Destination); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateGossipTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.agent.CreateGossipTicket()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateGossipTicketResponse{Ticket: ticket})
}

func (s *Server) handleJoinGossip(w http.ResponseWriter, r *http.Request) {
	var req JoinGossipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Ticket == "" {
		writeError(w, http.StatusBadRequest, errMissingField("ticket"))
		return
	}

	if err := s.agent.JoinGossip(req.Ticket); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetClipboardSharing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ClipboardSharingResponse{Enabled: s.agent.IsClipboardSharingEnabled()})
}

func (s *Server) handleSetClipboardSharing(w http.ResponseWriter, r *http.Request) {
	var req SetClipboardSharingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	if req.Enabled {
		err = s.agent.EnableClipboardSharing()
	} else {
		err = s.agent.DisableClipboardSharing()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ClipboardSharingResponse{Enabled: req.Enabled})
}

// handleEvents streams the agent's event bus as newline-delimited JSON
// until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errStreamingUnsupported)
		return
	}

	sub := s.agent.Events().Subscribe()
	defer s.agent.Events().Unsubscribe(sub)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if err := enc.Encode(StreamEvent{Kind: string(evt.Kind), Data: evt.Data}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

var errStreamingUnsupported = streamingUnsupportedError{}

type streamingUnsupportedError struct{}

func (streamingUnsupportedError) Error() string {
	return "daemon: response writer does not support streaming"
}

func errMissingField(name string) error { return missingFieldError{field: name} }

type missingFieldError struct{ field string }

func (e missingFieldError) Error() string { return "daemon: missing required field: " + e.field }
