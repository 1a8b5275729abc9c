// Package metrics holds the prometheus collectors shared across
// components. Everything is registered on the default registry and served
// by the api server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollCycles counts feed poll cycles by outcome
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garagebot_poll_cycles_total",
		Help: "Feed poll cycles, labelled by feed and result.",
	}, []string{"feed", "result"})

	// ItemsAnnounced counts feed items announced to the channel
	ItemsAnnounced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garagebot_feed_items_announced_total",
		Help: "Feed items announced.",
	}, []string{"feed"})

	// ActionsDispatched counts dispatched actions by kind and outcome
	ActionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garagebot_actions_dispatched_total",
		Help: "Actions dispatched, labelled by kind and result.",
	}, []string{"kind", "result"})

	// DispatchRetries counts transient-failure retries inside dispatch
	DispatchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garagebot_dispatch_retries_total",
		Help: "Retry attempts for transient dispatch failures.",
	})

	// JobRuns counts scheduler job executions by outcome
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garagebot_job_runs_total",
		Help: "Scheduled job runs, labelled by job and result.",
	}, []string{"job", "result"})

	// GatewayEvents counts domain events received from the gateway
	GatewayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garagebot_gateway_events_total",
		Help: "Gateway events received, labelled by kind.",
	}, []string{"kind"})
)
