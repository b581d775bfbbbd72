package api

import (
	"net/http"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	return "ok", nil
}

func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	status := s.checker.GetHealthStatus()
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	return status, nil
}
