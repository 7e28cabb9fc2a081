package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redemptions counts token redemption attempts by outcome: accepted,
// duplicate, invalid_token, inactive_session, validation, storage.
var Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "qrattend_redemptions_total",
	Help: "Token redemption attempts by outcome.",
}, []string{"outcome"})

// SessionsCreated counts sessions opened by admins.
var SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "qrattend_sessions_created_total",
	Help: "Attendance sessions created.",
})
