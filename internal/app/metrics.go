package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medword_chat_sends_total",
		Help: "Chat messages sent to the backend, by result.",
	}, []string{"result"})

	serviceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medword_service_requests_total",
		Help: "Text and dataset requests, by operation and result.",
	}, []string{"op", "result"})
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
