package metrics

import "github.com/prometheus/client_golang/prometheus"

// MarketplaceMetrics counts order lifecycle side effects. A nil receiver is a no-op.
type MarketplaceMetrics struct {
	routingAttempts *prometheus.CounterVec
	routingResults  *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	ledgerEntries   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	outboxPublished *prometheus.CounterVec
}

// NewMarketplaceMetrics registers the domain counters on reg.
func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	m := &MarketplaceMetrics{
		routingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logistics_courier_attempts_total",
			Help: "Courier shipment attempts by courier and outcome.",
		}, []string{"courier", "outcome"}),
		routingResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logistics_routing_results_total",
			Help: "Order routing results.",
		}, []string{"result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook events by source and outcome.",
		}, []string{"source", "outcome"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries written by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Accepted order status transitions by target status.",
		}, []string{"status"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox publish attempts by event type and outcome.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.routingAttempts, m.routingResults, m.webhookEvents, m.ledgerEntries, m.transitions, m.outboxPublished)
	return m
}

func (m *MarketplaceMetrics) CourierAttempt(courier, outcome string) {
	if m == nil || m.routingAttempts == nil {
		return
	}
	m.routingAttempts.WithLabelValues(normalizeLabel(courier), outcome).Inc()
}

func (m *MarketplaceMetrics) RoutingResult(result string) {
	if m == nil || m.routingResults == nil {
		return
	}
	m.routingResults.WithLabelValues(result).Inc()
}

func (m *MarketplaceMetrics) WebhookEvent(source, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(source, outcome).Inc()
}

func (m *MarketplaceMetrics) LedgerEntry(entryType string) {
	if m == nil || m.ledgerEntries == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(entryType).Inc()
}

func (m *MarketplaceMetrics) Transition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// OutboxPublish counts one publish attempt; outcome is published, retry or terminal.
func (m *MarketplaceMetrics) OutboxPublish(eventType, outcome string) {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.WithLabelValues(eventType, outcome).Inc()
}
