package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryLatency"
	MetricOutboxLag       = "OutboxLag"
	MetricOutboxPublished = "OutboxPublished"

	DimChannel = "Channel"
	DimAdapter = "Adapter"
	DimResult  = "Result"

	MetricNamespace = "Courier"
)
