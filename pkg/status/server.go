// SPDX-FileCopyrightText: 2026 The swtp-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package status serves a responder's transfer journal and metrics over HTTP.
package status

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/swtp/swtp-go/pkg/journal"
)

// Records are queried by the Server, implemented by *journal.Journal.
type Records interface {
	All() ([]journal.Record, error)
	Get(id string) (journal.Record, error)
	QueryPeer(peer string) ([]journal.Record, error)
}

// Server is a http.Handler for the status API:
//
//	GET /transfers[?peer=host:port]
//	GET /transfers/{id}
//	GET /metrics
type Server struct {
	router  *mux.Router
	records Records
}

// NewServer for a journal and a Prometheus registry.
func NewServer(records Records, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		records: records,
	}

	s.router.HandleFunc("/transfers", s.handleTransfers).Methods(http.MethodGet)
	s.router.HandleFunc("/transfers/{id}", s.handleTransfer).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return s
}

// ServeHTTP is a http.Handler to be bound to a HTTP endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to write status response")
	}
}

// handleTransfers processes /transfers GET requests.
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	var (
		records []journal.Record
		err     error
		resp    = TransfersResponse{Transfers: []Transfer{}}
	)

	if peer := r.URL.Query().Get("peer"); peer != "" {
		records, err = s.records.QueryPeer(peer)
	} else {
		records, err = s.records.All()
	}

	if err != nil {
		log.WithError(err).Warn("Failed to query journal")
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	for _, record := range records {
		resp.Transfers = append(resp.Transfers, newTransfer(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTransfer processes /transfers/{id} GET requests.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := s.records.Get(id)
	switch {
	case errors.Is(err, journal.ErrNotFound):
		writeJSON(w, http.StatusNotFound, TransferResponse{Error: err.Error()})

	case err != nil:
		log.WithError(err).WithField("id", id).Warn("Failed to query journal")
		writeJSON(w, http.StatusInternalServerError, TransferResponse{Error: err.Error()})

	default:
		transfer := newTransfer(record)
		writeJSON(w, http.StatusOK, TransferResponse{Transfer: &transfer})
	}
}
